package protocol

// EventMessagesUpsert is the only messaging gateway event the pipeline answers.
// Others (messages.update, connection.update, ...) are acknowledged and ignored.
const EventMessagesUpsert = "messages.upsert"

// Meta webhook vocabulary.
const (
	HubModeSubscribe = "subscribe"
	MetaFieldLeadgen = "leadgen"
)

// Dashboard redirect query parameters set by the Meta OAuth callback.
const (
	ParamMetaSuccess = "meta_success"
	ParamMetaError   = "meta_error"
	ParamMetaPages   = "pages"
)

// meta_error reasons.
const (
	MetaErrorDenied        = "denied"
	MetaErrorTokenExchange = "token_exchange"
	MetaErrorServer        = "server"
)
