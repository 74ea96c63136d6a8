package monitor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/mitchross/backup-monitor/internal/config"
)

const (
	LabelInternal = "internal"
	LabelExternal = "external"
)

// Invocation carries the identifiers of a single run. It replaces any
// process-wide state: everything that needs the log location gets it from
// here.
type Invocation struct {
	RequestID    string
	FunctionName string
	LogGroup     string
	LogStream    string
	Region       string
}

// Identifier is the deployment name the label is derived from: the log
// group, or the function name when no log group is known.
func (i Invocation) Identifier() string {
	if i.LogGroup != "" {
		return i.LogGroup
	}
	return i.FunctionName
}

// ConsoleURL links to this invocation's log stream in the CloudWatch console.
// It is empty when the region or log location is unknown.
func (i Invocation) ConsoleURL() string {
	if i.Region == "" || i.LogGroup == "" {
		return ""
	}
	return fmt.Sprintf("https://%[1]s.console.aws.amazon.com/cloudwatch/home?region=%[1]s#logEventViewer:group=%[2]s;stream=%[3]s",
		i.Region, i.LogGroup, i.LogStream)
}

// DeriveLabel maps a deployment identifier such as
// "/aws/lambda/int-tab-monitor-apps-prod" to the backup stream it watches.
// The identifier is split on non-alphanumeric characters; an "int" or
// "internal" token means internal and "ext" or "external" means external.
// No match, or both, is a configuration error.
func DeriveLabel(identifier string) (string, error) {
	tokens := strings.FieldsFunc(strings.ToLower(identifier), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var internal, external bool
	for _, tok := range tokens {
		switch tok {
		case "int", "internal":
			internal = true
		case "ext", "external":
			external = true
		}
	}

	switch {
	case internal && !external:
		return LabelInternal, nil
	case external && !internal:
		return LabelExternal, nil
	case internal && external:
		return "", &config.ConfigurationError{
			Field:  "label",
			Reason: fmt.Sprintf("is ambiguous in %q (matches both internal and external)", identifier),
		}
	default:
		return "", &config.ConfigurationError{
			Field:  "label",
			Reason: fmt.Sprintf("cannot be derived from %q (set CHECK_LABEL)", identifier),
		}
	}
}
