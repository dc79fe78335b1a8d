package apiclient

// Kind is the classified category of a failure.
type Kind string

const (
	KindNetworkError       Kind = "NETWORK_ERROR"
	KindRequestTimeout     Kind = "REQUEST_TIMEOUT"
	KindBadRequest         Kind = "BAD_REQUEST"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindForbidden          Kind = "FORBIDDEN"
	KindNotFound           Kind = "NOT_FOUND"
	KindValidationError    Kind = "VALIDATION_ERROR"
	KindServerError        Kind = "SERVER_ERROR"
	KindNgrokError         Kind = "NGROK_ERROR"
	KindBadGateway         Kind = "BAD_GATEWAY"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindAPIError           Kind = "API_ERROR"
	KindUnknown            Kind = "UNKNOWN"

	// Raised by the admin services rather than the transport mapping.
	KindLoginError              Kind = "LOGIN_ERROR"
	KindBranchTemporarilyClosed Kind = "BRANCH_TEMPORARILY_CLOSED"
	KindSessionExpired          Kind = "SESSION_EXPIRED"
)

// statusKinds is the fixed HTTP status mapping. 502 is refined by URL.
var statusKinds = map[int]Kind{
	400: KindBadRequest,
	401: KindUnauthorized,
	403: KindForbidden,
	404: KindNotFound,
	422: KindValidationError,
	500: KindServerError,
	502: KindBadGateway,
	503: KindServiceUnavailable,
}

func mappedStatus(status int) bool {
	_, ok := statusKinds[status]
	return ok
}
