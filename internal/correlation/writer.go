package correlation

import "github.com/gin-gonic/gin"

// headerWriter defers correlation header composition until the response is
// about to be written, so the emitted values reflect whatever Info a
// downstream handler stored last through the accessor.
type headerWriter struct {
	gin.ResponseWriter
	compose  func()
	composed bool
}

func (w *headerWriter) emitHeaders() {
	if w.composed {
		return
	}
	w.composed = true
	w.compose()
}

func (w *headerWriter) WriteHeader(code int) {
	w.emitHeaders()
	w.ResponseWriter.WriteHeader(code)
}

func (w *headerWriter) WriteHeaderNow() {
	w.emitHeaders()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *headerWriter) Write(b []byte) (int, error) {
	w.emitHeaders()
	return w.ResponseWriter.Write(b)
}

func (w *headerWriter) WriteString(s string) (int, error) {
	w.emitHeaders()
	return w.ResponseWriter.WriteString(s)
}
