package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/bankconnect-go/pkg/apperror"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
)

// UploadRequest describes one statement submission. Empty optional fields are omitted.
type UploadRequest struct {
	EntityID string
	FileName string
	File     io.Reader
	Password string
	// BankName selects the named-bank upload; empty means auto-detect.
	BankName string
}

const (
	uploadNamedBank = "upload_file"
	uploadBankless  = "bankless_upload"
)

// UploadStatement submits a PDF statement and returns the authenticity verdict,
// the entity id and the identity extracted from it.
func (c *Client) UploadStatement(ctx context.Context, req UploadRequest) (result *model.UploadResult, err error) {
	apiName := uploadNamedBank
	if req.BankName == "" {
		apiName = uploadBankless
	}

	ctx, span := c.tracer.Start(ctx, "connector.UploadStatement", trace.WithAttributes(
		attribute.String("bankconnect.entity_id", req.EntityID),
		attribute.String("bankconnect.upload_api", apiName),
		attribute.String("bankconnect.bank_name", req.BankName),
	))
	defer func() { endSpan(span, err) }()

	if req.File == nil {
		return nil, apperror.InvalidArgument(OpUpload, "file is required")
	}
	content, err := io.ReadAll(req.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read statement file: %w", err)
	}

	body, contentType, err := encodeUpload(req, content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}
	build := postRequest(c.url("/statement/%s/?identity=true", apiName), contentType, body)

	return retry(ctx, c, OpUpload, func(attempt int) (*model.UploadResult, error) {
		resp, err := c.send(ctx, OpUpload, attempt, build)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindServiceFailed, OpUpload, err)
		}

		switch resp.status {
		case http.StatusOK:
			res, err := decodeUploadSuccess(resp.body)
			if err != nil {
				return nil, apperror.Wrap(apperror.KindFormatChanged, OpUpload, err)
			}
			c.logger.Info("statement uploaded",
				"entity_id", res.EntityID,
				"upload_api", apiName,
				"is_authentic", res.IsAuthentic,
				"attempt", attempt,
			)
			return res, nil
		case http.StatusBadRequest:
			if rejection := decodeUploadRejection(resp.body); rejection != nil {
				c.logger.Info("statement rejected",
					"entity_id", req.EntityID,
					"upload_api", apiName,
					"kind", rejection.Kind.String(),
				)
				return nil, rejection
			}
			return nil, apperror.New(apperror.KindServiceFailed, OpUpload,
				"unclassified bad request: "+truncate(resp.body, 256))
		default:
			return nil, unexpectedStatus(OpUpload, resp)
		}
	})
}

func encodeUpload(req UploadRequest, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ key, value string }{
		{"entity_id", req.EntityID},
		{"pdf_password", req.Password},
		{"bank", req.BankName},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", err
		}
	}

	name := filepath.Base(req.FileName)
	if name == "." || name == string(filepath.Separator) {
		name = "statement.pdf"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func decodeUploadSuccess(body []byte) (*model.UploadResult, error) {
	var wire struct {
		IsFraud  *bool           `json:"is_fraud"`
		EntityID *string         `json:"entity_id"`
		Identity json.RawMessage `json:"identity"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if wire.IsFraud == nil || wire.EntityID == nil {
		return nil, errors.New("upload response is missing is_fraud or entity_id")
	}
	identity, ok, err := decodeIdentity(wire.Identity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("upload response is missing identity")
	}
	return &model.UploadResult{
		IsAuthentic: !*wire.IsFraud,
		EntityID:    *wire.EntityID,
		Identity:    identity,
	}, nil
}

// Rejection messages the service sends with a 400 on upload.
const (
	msgPasswordIncorrect = "password incorrect"
	msgPDFNotParsable    = "pdf is not parsable"
)

// decodeUploadRejection maps a 400 body to its rejection kind. It returns nil
// when the body carries no classifiable reason, which the caller retries.
func decodeUploadRejection(body []byte) *apperror.Error {
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil
	}

	if raw, ok := wire["bank_name"]; ok && !isJSONNull(raw) {
		return apperror.New(apperror.KindInvalidBankName, OpUpload, strings.Trim(string(raw), `"`))
	}

	raw, ok := wire["message"]
	if !ok || isJSONNull(raw) {
		return nil
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		message = string(raw)
	}

	normalized := strings.ToLower(strings.TrimSpace(message))
	switch {
	case normalized == msgPasswordIncorrect:
		return apperror.New(apperror.KindPasswordIncorrect, OpUpload, message)
	case normalized == msgPDFNotParsable:
		return apperror.New(apperror.KindUnparsablePDF, OpUpload, message)
	case strings.Contains(normalized, "identify") && strings.Contains(normalized, "bank"):
		return apperror.New(apperror.KindCannotIdentifyBank, OpUpload, message)
	default:
		return apperror.New(apperror.KindFileProcessFailed, OpUpload, message)
	}
}

func isJSONNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
