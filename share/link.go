package share

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
)

// Link builds the address of a scene's canvas page. viewOnly and a non-empty token are carried
// as query flags.
func Link(base, sceneID string, viewOnly bool, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	u = u.JoinPath("canvas", sceneID)
	q := u.Query()
	if viewOnly {
		q.Set("viewOnly", "true")
	}
	if token != "" {
		q.Set("token", token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var writeClipboard = clipboard.WriteAll

// Copy puts link on the system clipboard and reports it on out. When no clipboard is available
// it prints the link for manual copying instead and returns false.
func Copy(link string, out io.Writer) bool {
	if err := writeClipboard(link); err != nil {
		logrus.WithError(err).Debug("Clipboard unavailable")
		fmt.Fprintf(out, "Copy this link: %s\n", link)
		return false
	}
	fmt.Fprintf(out, "Share link copied:\n%s\n", link)
	return true
}
