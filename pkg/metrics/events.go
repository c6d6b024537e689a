package metrics

// Event names shared by producers and observers.
const (
	EventTurnState      = "turn_state"
	EventTurnDispatched = "turn_dispatched"
	EventTurnFailed     = "turn_failed"

	EventCompletion     = "completion"
	EventProviderError  = "provider_error"
	EventFallbackUsed   = "fallback_used"
	EventRateLimit      = "rate_limit"
	EventBreakerOpen    = "breaker_open"
	EventBreakerClose   = "breaker_close"
	EventBreakerDenied  = "breaker_denied"
	EventRetryAttempt   = "retry_attempt"
	EventQuoteExtracted = "quote_extracted"

	EventAudioCacheHit  = "audio_cache_hit"
	EventAudioCacheMiss = "audio_cache_miss"
	EventAudioFailed    = "audio_failed"

	EventSMSSent       = "sms_sent"
	EventSMSSendFailed = "sms_send_failed"

	EventBroadcast        = "broadcast"
	EventBroadcastDropped = "broadcast_dropped"

	EventRelayReplyDropped = "relay_reply_dropped"

	EventHTTPRequest = "http_request"
)
