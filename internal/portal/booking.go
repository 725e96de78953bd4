package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
)

// IdempotencyHeader carries the draft's idempotency token on submissions.
const IdempotencyHeader = "Idempotency-Key"

type BookingClient struct {
	c client
}

func NewBookingClient(cfg Config, httpClient *http.Client) *BookingClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &BookingClient{c: newClient(cfg.BookingBaseURL, httpClient)}
}

// bookingResponse is the body of POST /bookings, both on success and failure.
type bookingResponse struct {
	Success           *bool                   `json:"success"`
	Message           string                  `json:"message"`
	BookingRef        string                  `json:"brn"`
	BookingStatus     string                  `json:"booking_status"`
	RequestDate       string                  `json:"request_date"`
	Applicants        *intake.ApplicantCounts `json:"applicants"`
	ExportArtifactURL string                  `json:"export_artifact_url"`
}

// Submit posts the booking. CSV upload bookings travel as multipart with the
// JSON payload in the "payload" part and the roster in the "file" part.
// Every failure is returned as *intake.SubmitError.
func (b *BookingClient) Submit(ctx context.Context, req intake.SubmitRequest) (*intake.SubmitResult, error) {
	body, contentType, err := encodeBooking(req)
	if err != nil {
		return nil, &intake.SubmitError{Kind: intake.FailureServer, Message: "could not encode booking", Err: err}
	}

	header := http.Header{}
	header.Set(IdempotencyHeader, req.IdempotencyKey)

	res, err := b.c.send(ctx, http.MethodPost, "/bookings", body, contentType, header)
	if err != nil {
		return nil, &intake.SubmitError{Kind: intake.FailureNetwork, Message: "booking service unreachable", Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &intake.SubmitError{Kind: intake.FailureNetwork, StatusCode: res.StatusCode, Message: "booking response interrupted", Err: err}
	}

	var resp bookingResponse
	decodeErr := json.Unmarshal(raw, &resp)

	switch {
	case res.StatusCode >= 500:
		return nil, &intake.SubmitError{
			Kind:              intake.FailureServer,
			StatusCode:        res.StatusCode,
			Message:           messageOf(raw),
			ExportArtifactURL: resp.ExportArtifactURL,
			Err:               &StatusError{StatusCode: res.StatusCode, Body: string(raw)},
		}
	case res.StatusCode >= 400:
		return nil, &intake.SubmitError{
			Kind:              intake.FailureRejected,
			StatusCode:        res.StatusCode,
			Message:           messageOf(raw),
			ExportArtifactURL: resp.ExportArtifactURL,
			Err:               &StatusError{StatusCode: res.StatusCode, Body: string(raw)},
		}
	case decodeErr != nil:
		return nil, &intake.SubmitError{Kind: intake.FailureServer, StatusCode: res.StatusCode, Message: "malformed booking response", Err: decodeErr}
	case resp.Success != nil && !*resp.Success:
		return nil, &intake.SubmitError{
			Kind:              intake.FailureRejected,
			StatusCode:        res.StatusCode,
			Message:           resp.Message,
			ExportArtifactURL: resp.ExportArtifactURL,
		}
	case resp.BookingRef == "":
		return nil, &intake.SubmitError{Kind: intake.FailureServer, StatusCode: res.StatusCode, Message: "booking response without reference", Err: ErrUnexpectedResponse}
	}

	return &intake.SubmitResult{
		BookingRef:        resp.BookingRef,
		BookingStatus:     resp.BookingStatus,
		RequestDate:       resp.RequestDate,
		Applicants:        resp.Applicants,
		ExportArtifactURL: resp.ExportArtifactURL,
	}, nil
}

func encodeBooking(req intake.SubmitRequest) (io.Reader, string, error) {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("marshal payload: %w", err)
	}
	if req.Roster == nil {
		return bytes.NewReader(payload), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	ph := textproto.MIMEHeader{}
	ph.Set("Content-Disposition", `form-data; name="payload"`)
	ph.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(ph)
	if err != nil {
		return nil, "", fmt.Errorf("create payload part: %w", err)
	}
	if _, err := pw.Write(payload); err != nil {
		return nil, "", fmt.Errorf("write payload part: %w", err)
	}

	fh := textproto.MIMEHeader{}
	fh.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, req.Roster.Name))
	ct := req.Roster.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	fh.Set("Content-Type", ct)
	fw, err := mw.CreatePart(fh)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(req.Roster.Data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// Summary is the booking service's record of a submitted booking.
type Summary struct {
	BookingRef        string                 `json:"brn"`
	BookingStatus     string                 `json:"booking_status"`
	RequestDate       string                 `json:"request_date"`
	CompanyName       string                 `json:"company_name"`
	OfficeName        string                 `json:"office_name"`
	AppointmentDate   string                 `json:"appointment_date"`
	CollectionMode    string                 `json:"collection_mode"`
	Applicants        intake.ApplicantCounts `json:"applicants"`
	ExportArtifactURL string                 `json:"export_artifact_url"`
}

// LookupSummary fetches a booking by its reference number.
func (b *BookingClient) LookupSummary(ctx context.Context, brn string) (*Summary, error) {
	brn = strings.TrimSpace(brn)
	if brn == "" {
		return nil, ErrSummaryNotFound
	}

	var resp struct {
		Success *bool   `json:"success"`
		Data    Summary `json:"data"`
	}
	err := b.c.post(ctx, "/bookings/summary", map[string]string{"brn": brn}, &resp)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("portal booking summary: %w", err)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, ErrSummaryNotFound
	}
	if resp.Data.BookingRef == "" {
		resp.Data.BookingRef = brn
	}
	return &resp.Data, nil
}
