package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonValidation ReasonCode = "validation"

	ReasonLLMGenerate    ReasonCode = "llm_generate"
	ReasonLLMRateLimit   ReasonCode = "llm_rate_limit"
	ReasonLLMCircuitOpen ReasonCode = "llm_circuit_open"

	ReasonTTSSynthesize ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit  ReasonCode = "tts_rate_limit"

	ReasonSTTTranscribe ReasonCode = "stt_transcribe"

	ReasonAudioStore ReasonCode = "audio_store"

	ReasonSMSSend     ReasonCode = "sms_send"
	ReasonRelayDecode ReasonCode = "relay_decode"
	ReasonBroadcast   ReasonCode = "broadcast"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransportDial             ReasonCode = "transport_dial"
)
