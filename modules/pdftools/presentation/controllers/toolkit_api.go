package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
	"github.com/jacksonlee411/harbor-erp/modules/pdftools/services"
	"github.com/jacksonlee411/harbor-erp/pkg/envelope"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
	defaultQuality        = 75
)

type ToolkitController struct {
	Toolkit        *services.Toolkit
	Gate           *services.Gate
	Artifacts      *services.ArtifactsFacade
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type compressResponse struct {
	Artifact *types.Artifact         `json:"artifact,omitempty"`
	Result   types.CompressionResult `json:"result"`
}

func (c ToolkitController) HandleMerge(w http.ResponseWriter, r *http.Request) {
	release, ok := c.enter(w)
	if !ok {
		return
	}
	defer release()

	form, ok := c.parseForm(w, r)
	if !ok {
		return
	}
	defer removeAll(form)
	inputs, err := readFiles(form, "files")
	if err != nil {
		c.fail(w, r, "merge", err)
		return
	}
	out, err := c.Toolkit.Merge(r.Context(), inputs)
	if err != nil {
		c.fail(w, r, "merge", err)
		return
	}
	c.deliver(w, r, "merge", out, "Files merged.")
}

// HandleSplit stores every part as an artifact, or streams them back as one
// zip archive when format=zip.
func (c ToolkitController) HandleSplit(w http.ResponseWriter, r *http.Request) {
	release, ok := c.enter(w)
	if !ok {
		return
	}
	defer release()

	form, ok := c.parseForm(w, r)
	if !ok {
		return
	}
	defer removeAll(form)
	in, err := readFile(form, "file")
	if err != nil {
		c.fail(w, r, "split", err)
		return
	}
	outs, err := c.Toolkit.Split(r.Context(), in, formValue(form, "ranges"))
	if err != nil {
		c.fail(w, r, "split", err)
		return
	}

	if strings.EqualFold(formValue(form, "format"), "zip") {
		if err := writeZip(w, zipName(in.Name), outs); err != nil {
			c.logger().Error("pdf split archive failed", zap.Error(err))
		}
		return
	}
	saved, err := c.Artifacts.SaveAll(r.Context(), outs)
	if err != nil {
		c.fail(w, r, "split", err)
		return
	}
	envelope.WriteOK(w, saved, fmt.Sprintf("Document split into %d files.", len(saved)))
}

func (c ToolkitController) HandleCompress(w http.ResponseWriter, r *http.Request) {
	release, ok := c.enter(w)
	if !ok {
		return
	}
	defer release()

	form, ok := c.parseForm(w, r)
	if !ok {
		return
	}
	defer removeAll(form)
	in, err := readFile(form, "file")
	if err != nil {
		c.fail(w, r, "compress", err)
		return
	}
	quality := defaultQuality
	if raw := strings.TrimSpace(formValue(form, "quality")); raw != "" {
		if quality, err = strconv.Atoi(raw); err != nil {
			c.fail(w, r, "compress", types.ErrQuality)
			return
		}
	}
	out, res, err := c.Toolkit.Compress(r.Context(), in, quality)
	if err != nil {
		c.fail(w, r, "compress", err)
		return
	}

	h := w.Header()
	h.Set("X-Compression-Original-Size", strconv.FormatInt(res.OriginalSize, 10))
	h.Set("X-Compression-Size", strconv.FormatInt(res.CompressedSize, 10))
	h.Set("X-Compression-Saved", strconv.FormatInt(res.SavedBytes, 10))
	if !formBool(form, "store") {
		writeDocument(w, out.Filename, services.ContentTypePDF, out.Data)
		return
	}
	a, err := c.Artifacts.Save(r.Context(), out, services.ContentTypePDF)
	if err != nil {
		c.fail(w, r, "compress", err)
		return
	}
	envelope.WriteOK(w, compressResponse{Artifact: &a, Result: res}, "Document compressed.")
}

// HandleEdit appends the pages of every "additional" upload to "main".
func (c ToolkitController) HandleEdit(w http.ResponseWriter, r *http.Request) {
	release, ok := c.enter(w)
	if !ok {
		return
	}
	defer release()

	form, ok := c.parseForm(w, r)
	if !ok {
		return
	}
	defer removeAll(form)
	main, err := readFile(form, "main")
	if err != nil {
		c.fail(w, r, "edit", err)
		return
	}
	additional, err := readFiles(form, "additional")
	if err != nil {
		c.fail(w, r, "edit", err)
		return
	}
	out, err := c.Toolkit.Append(r.Context(), main, additional, formBool(form, "incremental"))
	if err != nil {
		c.fail(w, r, "edit", err)
		return
	}
	c.deliver(w, r, "edit", out, "Pages appended.")
}

// HandleInfo parses the whole document, so it takes a gate slot like the
// other operations.
func (c ToolkitController) HandleInfo(w http.ResponseWriter, r *http.Request) {
	release, ok := c.enter(w)
	if !ok {
		return
	}
	defer release()

	form, ok := c.parseForm(w, r)
	if !ok {
		return
	}
	defer removeAll(form)
	in, err := readFile(form, "file")
	if err != nil {
		c.fail(w, r, "info", err)
		return
	}
	info, err := c.Toolkit.Info(in)
	if err != nil {
		c.fail(w, r, "info", err)
		return
	}
	envelope.WriteOK(w, info, "")
}

func (c ToolkitController) HandleArtifact(w http.ResponseWriter, r *http.Request) {
	a, data, err := c.Artifacts.Open(r.Context(), r.PathValue("id"))
	if errors.Is(err, types.ErrArtifactNotFound) {
		writeError(w, r, http.StatusNotFound, "artifact_not_found", "The file has expired or does not exist.")
		return
	}
	if err != nil {
		c.logger().Error("pdf artifact read failed", zap.String("id", r.PathValue("id")), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred. Please try again.")
		return
	}
	writeDocument(w, a.Filename, a.ContentType, data)
}

// deliver answers with the document itself unless store=true asked for an
// artifact reference.
func (c ToolkitController) deliver(w http.ResponseWriter, r *http.Request, op string, out types.Output, message string) {
	if !formBool(r.MultipartForm, "store") {
		writeDocument(w, out.Filename, services.ContentTypePDF, out.Data)
		return
	}
	a, err := c.Artifacts.Save(r.Context(), out, services.ContentTypePDF)
	if err != nil {
		c.fail(w, r, op, err)
		return
	}
	envelope.WriteOK(w, a, message)
}

func (c ToolkitController) enter(w http.ResponseWriter) (func(), bool) {
	if c.Gate == nil {
		return func() {}, true
	}
	release, err := c.Gate.Enter()
	if err != nil {
		envelope.Write(w, http.StatusTooManyRequests, envelope.Failed("The PDF toolkit is busy. Please try again shortly."))
		return nil, false
	}
	return release, true
}

func (c ToolkitController) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	limit := c.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if _, tooLarge := errors.AsType[*http.MaxBytesError](err); tooLarge {
			writeError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "The uploaded files exceed the size limit.")
			return nil, false
		}
		envelope.Write(w, http.StatusBadRequest, envelope.Failed("Request is not a valid file upload."))
		return nil, false
	}
	return r.MultipartForm, true
}

func (c ToolkitController) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, types.ErrBusy):
		envelope.Write(w, http.StatusTooManyRequests, envelope.Failed("The PDF toolkit is busy. Please try again shortly."))
	case types.IsValidation(err):
		envelope.Write(w, http.StatusBadRequest, envelope.Failed(validationMessage(err)))
	default:
		c.logger().Error("pdf job failed",
			zap.String("op", op),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		envelope.WriteFailure(w, err)
	}
}

func (c ToolkitController) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// validationMessage capitalizes the error text for display.
func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Request failed."
	}
	msg = strings.ToUpper(msg[:1]) + msg[1:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

func writeDocument(w http.ResponseWriter, filename, contentType string, data []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeZip(w http.ResponseWriter, filename string, outs []types.Output) error {
	h := w.Header()
	h.Set("Content-Type", services.ContentTypeZip)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	for _, out := range outs {
		f, err := zw.Create(out.Filename)
		if err != nil {
			return err
		}
		if _, err := f.Write(out.Data); err != nil {
			return err
		}
	}
	return zw.Close()
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func traceIDFromRequest(r *http.Request) string {
	parts := strings.Split(strings.TrimSpace(r.Header.Get("traceparent")), "-")
	if len(parts) != 4 || len(parts[1]) != 32 {
		return ""
	}
	return strings.ToLower(parts[1])
}
