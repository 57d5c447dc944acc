package git

import (
	"fmt"
	"net/url"

	"github.com/whilp/git-urls"
)

// SafeURL returns repoURL with any password removed, for logs and
// notifications.
func SafeURL(repoURL string) string {
	u, err := giturls.Parse(repoURL)
	if err != nil {
		return fmt.Sprintf("<unparseable: %s>", repoURL)
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
