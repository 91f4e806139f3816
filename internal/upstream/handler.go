package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// HandlerFetcher serves fetches from an in-process http.Handler, so the
// frontpage origin can sit behind the offline layer without a network hop.
// The context deadline still applies: a handler that overruns it is
// abandoned and Fetch returns the context error.
type HandlerFetcher struct {
	Handler http.Handler
}

// Fetch runs the handler against a copy of req and captures its response.
func (f HandlerFetcher) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	in := req.Clone(ctx)
	in.RequestURI = ""
	rec := newRecorder()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- fmt.Errorf("origin handler panic: %v", p)
			}
		}()
		f.Handler.ServeHTTP(rec, in)
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
		return rec.result(in), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recorder is a minimal http.ResponseWriter that buffers the response.
type recorder struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: http.Header{}, status: http.StatusOK}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(b)
}

func (r *recorder) result(req *http.Request) *http.Response {
	body := r.body.Bytes()
	h := r.header.Clone()
	if h.Get("Content-Type") == "" && len(body) > 0 {
		h.Set("Content-Type", http.DetectContentType(body))
	}
	return &http.Response{
		Status:        strconv.Itoa(r.status) + " " + http.StatusText(r.status),
		StatusCode:    r.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
