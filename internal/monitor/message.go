package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchross/backup-monitor/internal/freshness"
	"github.com/mitchross/backup-monitor/internal/notify"
)

const timestampLayout = "2006-01-02 15:04:05 MST"

const defaultLocation = "DATA ARCHIVE"

func headline(label, location string) string {
	if location == "" {
		location = defaultLocation
	}
	return fmt.Sprintf(":fire: :sad_parrot: *%s BACKUP PROCESS DID NOT COMPLETE* Files are not regularly arriving in *%s* :sad_parrot: :fire:",
		strings.ToUpper(label), location)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// StaleMessage reports the latest backup and how long ago it arrived.
func StaleMessage(label, location string, thresholdMin int, result freshness.Result) notify.Message {
	return notify.Message{
		Headline: headline(label, location),
		Text: fmt.Sprintf("Please investigate *%s backups*! No backups uploaded for the last %d minutes. Last backup %s was uploaded on %s",
			titleCase(label), thresholdMin, result.Latest.Key, result.Latest.LastModified.UTC().Format(timestampLayout)),
	}
}

// EmptyMessage reports that nothing at all was found.
func EmptyMessage(label, location, prefix string, thresholdMin int, result freshness.Result) notify.Message {
	return notify.Message{
		Headline: headline(label, location),
		Text: fmt.Sprintf("Please investigate %s backup uploads! No backups found under %s; nothing uploaded for the last %d minutes (since %s)",
			titleCase(label), prefix, thresholdMin, result.Cutoff.UTC().Format(time.DateOnly)),
	}
}

// FailureMessage reports that the check itself could not run. Without a
// label the headline names the monitor rather than a backup stream.
func FailureMessage(label, location string, inv Invocation, err error) notify.Message {
	title := headline(label, location)
	if label == "" {
		if location == "" {
			location = defaultLocation
		}
		title = fmt.Sprintf(":fire: :sad_parrot: *BACKUP MONITOR CHECK FAILED* Could not confirm files are arriving in *%s* :sad_parrot: :fire:", location)
	}

	link := inv.ConsoleURL()
	if link == "" {
		link = fmt.Sprintf("log group %q, stream %q", inv.LogGroup, inv.LogStream)
	}

	return notify.Message{
		Headline: title,
		Text:     fmt.Sprintf("Pipeline error: %s\n%v", link, err),
	}
}
