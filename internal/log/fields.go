package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldUserID     = "user_id"
	FieldFamilyID   = "family_id"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEvent      = "event"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentAuth      = "auth"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentBudget    = "budget"
	ComponentRateLimit = "rate_limit"
	ComponentAudit     = "audit"
	ComponentCLI       = "cli"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) WithRequestID(id string) Fields {
	f[FieldRequestID] = id
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithHTTPRequest(method, path, query, clientIP string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	f[FieldClientIP] = clientIP
	return f
}

func (f Fields) WithHTTPResponse(status int, durationMs int64) Fields {
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

func (f Fields) WithUser(userID uint) Fields {
	if userID != 0 {
		f[FieldUserID] = userID
	}
	return f
}

// ToSlice converts Fields to slog's variadic key/value form.
func (f Fields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
