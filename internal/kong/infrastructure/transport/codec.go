package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeNoBody(context.Context, *http.Request, interface{}) error {
	return nil
}

func encodePropertyRequest(_ context.Context, r *http.Request, request interface{}) error {
	in, ok := request.(application.PropertyCreationInput)
	if !ok {
		return errors.Wrapf(application.ErrInvalidInput, "unexpected request type %T", request)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := []struct{ key, value string }{
		{"name", in.Name},
		{"bedrooms", strconv.FormatUint(uint64(in.Bedrooms), 10)},
		{"bathrooms", strconv.FormatUint(uint64(in.Bathrooms), 10)},
		{"sqft", formatFloat(in.Sqft)},
		{"address", in.Address},
		{"agentid", strconv.FormatInt(in.Agent, 10)},
		{"description", in.Description},
	}
	if in.Price != nil {
		fields = append(fields, struct{ key, value string }{"price", formatFloat(*in.Price)})
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return errors.Wrapf(err, "failed to write field '%s'", f.key)
		}
	}

	for i, photo := range in.Photos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo_%d"; filename="%s"`, i, quoteEscaper.Replace(photo.Filename)))
		h.Set("Content-Type", mimetype.Detect(photo.Content).String())
		part, err := w.CreatePart(h)
		if err != nil {
			return errors.Wrapf(err, "failed to create part for photo %d", i)
		}
		if _, err := part.Write(photo.Content); err != nil {
			return errors.Wrapf(err, "failed to write photo %d", i)
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "failed to close multipart body")
	}

	r.Header.Set("Content-Type", w.FormDataContentType())
	r.ContentLength = int64(body.Len())
	r.Body = io.NopCloser(&body)
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// decodeResponse decodes the success body into the value returned by
// newBody, and turns every other status into a *ResponseError.
func decodeResponse(t statusTable, newBody func() interface{}) httptransport.DecodeResponseFunc {
	return func(_ context.Context, r *http.Response) (interface{}, error) {
		if r.StatusCode != t.success {
			return nil, newResponseError(r, t)
		}
		body := newBody()
		if err := json.NewDecoder(r.Body).Decode(body); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to decode response body")
		}
		return body, nil
	}
}
