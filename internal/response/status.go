package response

import "strconv"

// Status is an HTTP status code from the subset the engine emits.
// The zero value means unset.
type Status int

const (
	StatusConnectionTimedOut  Status = 110
	StatusConnectionRefused   Status = 111
	StatusOK                  Status = 200
	StatusMultipleChoices     Status = 300
	StatusMovedPermanently    Status = 301
	StatusFound               Status = 302
	StatusSeeOther            Status = 303
	StatusNotModified         Status = 304
	StatusTemporaryRedirect   Status = 307
	StatusPermanentRedirect   Status = 308
	StatusTooManyRedirects    Status = 310
	StatusBadRequest          Status = 400
	StatusUnauthorized        Status = 401
	StatusPaymentRequired     Status = 402
	StatusForbidden           Status = 403
	StatusNotFound            Status = 404
	StatusMethodNotAllowed    Status = 405
	StatusNotAcceptable       Status = 406
	StatusProxyAuthRequired   Status = 407
	StatusRequestTimeout      Status = 408
	StatusConflict            Status = 409
	StatusGone                Status = 410
	StatusLengthRequired      Status = 411
	StatusPreconditionFailed  Status = 412
	StatusEntityTooLarge      Status = 413
	StatusURITooLong          Status = 414
	StatusUnsupportedMedia    Status = 415
	StatusRangeNotSatisfiable Status = 416
	StatusExpectationFailed   Status = 417
	StatusTeapot              Status = 418
	StatusEnhanceYourCalm     Status = 420
	StatusUnprocessable       Status = 422
	StatusLocked              Status = 423
	StatusFailedDependency    Status = 424
	StatusTooEarly            Status = 425
	StatusUpgradeRequired     Status = 426
	StatusPreconditionReq     Status = 428
	StatusTooManyRequests     Status = 429
	StatusHeaderFieldsTooBig  Status = 431
	StatusInternalServerError Status = 500
)

var statusReasons = map[Status]string{
	StatusConnectionTimedOut:  "Connection Timed Out",
	StatusConnectionRefused:   "Connection Refused",
	StatusOK:                  "OK",
	StatusMultipleChoices:     "Multiple Choice",
	StatusMovedPermanently:    "Moved Permanently",
	StatusFound:               "Found",
	StatusSeeOther:            "See Other",
	StatusNotModified:         "Not Modified",
	StatusTemporaryRedirect:   "Temporary Redirect",
	StatusPermanentRedirect:   "Permanent Redirect",
	StatusTooManyRedirects:    "Too Many Redirects",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusPaymentRequired:     "Payment Required",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusNotAcceptable:       "Not Acceptable",
	StatusProxyAuthRequired:   "Proxy Authentication Required",
	StatusRequestTimeout:      "Request Timeout",
	StatusConflict:            "Conflict",
	StatusGone:                "Gone",
	StatusLengthRequired:      "Length Required",
	StatusPreconditionFailed:  "Precondition Failed",
	StatusEntityTooLarge:      "Request Entity Too Large",
	StatusURITooLong:          "Request-URI Too Long",
	StatusUnsupportedMedia:    "Unsupported Media Type",
	StatusRangeNotSatisfiable: "Requested Range Not Satisfiable",
	StatusExpectationFailed:   "Expectation Failed",
	StatusTeapot:              "I'm a teapot",
	StatusEnhanceYourCalm:     "Enhance Your Calm",
	StatusUnprocessable:       "Unprocessable Entity",
	StatusLocked:              "Locked",
	StatusFailedDependency:    "Failed Dependency",
	StatusTooEarly:            "Reserved for WebDAV",
	StatusUpgradeRequired:     "Upgrade Required",
	StatusPreconditionReq:     "Precondition Required",
	StatusTooManyRequests:     "Too Many Requests",
	StatusHeaderFieldsTooBig:  "Request Header Fields Too Large",
	StatusInternalServerError: "Internal Server Error",
}

// Code returns the numeric status code.
func (s Status) Code() int { return int(s) }

// Reason returns the reason phrase, or "" for codes outside the table.
func (s Status) Reason() string { return statusReasons[s] }

// Known reports whether s is part of the emitted subset.
func (s Status) Known() bool {
	_, ok := statusReasons[s]
	return ok
}

// String returns the status text as it appears on the status line,
// e.g. "404 Not Found".
func (s Status) String() string {
	reason := statusReasons[s]
	if reason == "" {
		return strconv.Itoa(int(s))
	}
	return strconv.Itoa(int(s)) + " " + reason
}
