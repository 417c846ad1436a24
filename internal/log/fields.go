package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldFamilyID      = "family_id"
	FieldRecurringID   = "recurring_id"
	FieldPlanID        = "plan_id"
	FieldPeriod        = "period"
	FieldAsOf          = "as_of"
	FieldAmountCents   = "amount_cents"
	FieldDescription   = "description"
	FieldHorizonDays   = "horizon_days"
	FieldGenerated     = "generated"
	FieldSkipped       = "skipped"
	FieldFailed        = "failed"
	FieldTransactionID = "transaction_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentGenerator = "generator"
	ComponentForecast  = "forecast"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpGenerate = "generate"
	OpForecast = "forecast"
	OpExport   = "export"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpList     = "list"
	OpInsert   = "insert"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error field; nil errors are ignored
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithFamily(familyID string) LogFields {
	f[FieldFamilyID] = familyID
	return f
}

// WithOccurrence adds the fields identifying one generated occurrence
func (f LogFields) WithOccurrence(recurringID, period string, amountCents int64) LogFields {
	f[FieldRecurringID] = recurringID
	f[FieldPeriod] = period
	f[FieldAmountCents] = amountCents
	return f
}

// WithCounts adds the outcome counters of a generation batch
func (f LogFields) WithCounts(generated, skipped, failed int) LogFields {
	f[FieldGenerated] = generated
	f[FieldSkipped] = skipped
	f[FieldFailed] = failed
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a key-sorted slice for slog
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
