package http

import (
	"net/http"
	"sort"

	"github.com/golang/gddo/httputil/header"
)

// negotiateContentType picks one of available (in order of
// preference) according to the request's Accept header. Quality (`q`)
// wins over preference. With no Accept header the first available
// type is chosen; if nothing acceptable is available, "".
func negotiateContentType(r *http.Request, available []string) string {
	specs := header.ParseAccept(r.Header, "Accept")
	if len(specs) == 0 {
		return available[0]
	}

	var candidates []header.AcceptSpec
	for _, spec := range specs {
		if rank(available, spec.Value) < len(available) {
			candidates = append(candidates, spec)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Q != candidates[j].Q {
			return candidates[i].Q > candidates[j].Q
		}
		return rank(available, candidates[i].Value) < rank(available, candidates[j].Value)
	})
	return candidates[0].Value
}

// rank is the position of value in prefs, or len(prefs) if it isn't
// there, so that unknown values sort last.
func rank(prefs []string, value string) int {
	for i, p := range prefs {
		if p == value {
			return i
		}
	}
	return len(prefs)
}
