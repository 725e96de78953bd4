package booking

import "errors"

var (
	ErrMissingSession  = errors.New("client session id is required")
	ErrSummaryNotFound = errors.New("booking summary not found")
	ErrNoFailure       = errors.New("no failed submission for this session")
	ErrNoCompany       = errors.New("account has no company to book for")
)
