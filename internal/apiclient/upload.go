package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

type uploadResponse struct {
	Data *struct {
		URL string `json:"url"`
	} `json:"data"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// UploadAsset posts a multipart form with the raw bytes under "file" and the
// asset discriminator under "type", and returns the stored asset URL.
func (c *Client) UploadAsset(ctx context.Context, assetType, fileName, contentType string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	if err := w.WriteField("type", assetType); err != nil {
		return "", &Error{Op: "upload asset", Kind: KindMalformed, Err: err}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(fileName)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", &Error{Op: "upload asset", Kind: KindMalformed, Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return "", &Error{Op: "upload asset", Kind: KindMalformed, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &Error{Op: "upload asset", Kind: KindMalformed, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/asset", &body)
	if err != nil {
		return "", &Error{Op: "upload asset", Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp uploadResponse
	if err := c.do("upload asset", req, &resp); err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.URL == "" {
		return "", &Error{Op: "upload asset", Kind: KindMalformed, Err: errors.New("missing data.url")}
	}
	return resp.Data.URL, nil
}
