package registration

import "strings"

// Intent is the classification of an inbound text message.
type Intent int

const (
	IntentUnrecognized Intent = iota
	IntentHelp
	IntentRegisterDeepLink
	IntentRegisterText
)

var intentNames = map[Intent]string{
	IntentUnrecognized:     "unrecognized",
	IntentHelp:             "help",
	IntentRegisterDeepLink: "register_deep_link",
	IntentRegisterText:     "register_text",
}

func (i Intent) String() string {
	return intentNames[i]
}

const (
	cmdStart = "/start"
	cmdHelp  = "/help"
)

// Classify maps a message text to an Intent. The deep link payload, if any, is returned with it.
func Classify(text string) (Intent, string) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return IntentUnrecognized, ""
	}

	if strings.HasPrefix(tokens[0], "/") {
		// commands may be addressed to a bot: /start@edutrack_bot
		cmd := strings.ToLower(strings.SplitN(tokens[0], "@", 2)[0])
		switch {
		case cmd == cmdStart && len(tokens) > 1:
			return IntentRegisterDeepLink, strings.Join(tokens[1:], " ")
		case cmd == cmdStart, cmd == cmdHelp:
			return IntentHelp, ""
		default:
			return IntentUnrecognized, ""
		}
	}

	if len(tokens) >= 2 {
		return IntentRegisterText, ""
	}
	return IntentUnrecognized, ""
}
