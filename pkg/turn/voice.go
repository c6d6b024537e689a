package turn

import (
	"strings"

	"github.com/twilio/twilio-go/twiml"
)

const (
	apology        = "I'm sorry, we're having trouble right now."
	callbackNotice = "A member of our team will call you back shortly."
	holdNotice     = "Please hold while I connect you with a member of our team."
	goodbye        = "Thanks for calling. Goodbye."
	outboundPrompt = "Are you interested in booking a cleaning? Just tell me what you need."

	// staticFallback is served if markup rendering itself fails.
	staticFallback = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + apology + " " + callbackNotice + `</Say><Hangup/></Response>`
)

func speechGather(action, language string, inner ...twiml.Element) *twiml.VoiceGather {
	return &twiml.VoiceGather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Language:      language,
		SpeechTimeout: "auto",
		InnerElements: inner,
	}
}

// replyDocument speaks or plays the reply inside a speech gather so the
// caller can answer, and ends the call if they stay silent.
func replyDocument(text, audioURL, action, language string) (string, error) {
	var prompt twiml.Element = &twiml.VoiceSay{Message: text}
	if audioURL != "" {
		prompt = &twiml.VoicePlay{Url: audioURL}
	}
	return twiml.Voice([]twiml.Element{
		speechGather(action, language, prompt),
		&twiml.VoiceSay{Message: goodbye},
		&twiml.VoiceHangup{},
	})
}

func greetingDocument(greeting, action, language string) (string, error) {
	return twiml.Voice([]twiml.Element{
		speechGather(action, language, &twiml.VoiceSay{Message: greeting}),
		&twiml.VoiceSay{Message: goodbye},
		&twiml.VoiceHangup{},
	})
}

// outboundDocument greets the callee on behalf of company, gathers speech,
// and records a message if the gather gets nothing.
func outboundDocument(company string, cfg Config) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		company = cfg.Business
	}
	return twiml.Voice([]twiml.Element{
		&twiml.VoiceSay{Message: "Hello, this is " + company + " calling."},
		speechGather(cfg.VoiceActionURL, cfg.SpeechLanguage, &twiml.VoiceSay{Message: outboundPrompt}),
		&twiml.VoiceRecord{
			Action:                  cfg.VoiceActionURL,
			Method:                  "POST",
			MaxLength:               "60",
			PlayBeep:                "true",
			RecordingStatusCallback: cfg.StatusCallbackURL,
		},
	})
}

// fallbackDocument never fails: it degrades to a constant document.
func fallbackDocument(handoff string) string {
	verbs := []twiml.Element{}
	if handoff = strings.TrimSpace(handoff); handoff != "" {
		verbs = append(verbs,
			&twiml.VoiceSay{Message: apology + " " + holdNotice},
			&twiml.VoiceDial{Number: handoff},
		)
	} else {
		verbs = append(verbs,
			&twiml.VoiceSay{Message: apology + " " + callbackNotice},
			&twiml.VoiceHangup{},
		)
	}
	doc, err := twiml.Voice(verbs)
	if err != nil {
		return staticFallback
	}
	return doc
}
