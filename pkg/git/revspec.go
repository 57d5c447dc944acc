package git

import (
	"strings"

	"github.com/pkg/errors"
)

type RevSpecKind int

const (
	// A single ref names a commit.
	SingleRev RevSpecKind = iota
	// A..B names A's commit.
	RangeRev
	// A...B names A's commit; the merge base of A and B is computed
	// for the record.
	SymmetricRev
)

// RevSpec is a parsed tag or ref expression from a deploy request.
// An empty endpoint in a range means HEAD.
type RevSpec struct {
	Kind RevSpecKind
	From string
	To   string
}

// ParseRevSpec recognises "ref", "A..B" and "A...B". Anything else,
// including an empty string or more than one range operator, is an
// error.
func ParseRevSpec(spec string) (RevSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return RevSpec{}, errors.New("empty ref")
	}
	if strings.Count(spec, "...") > 1 {
		return RevSpec{}, errors.Errorf("unsupported ref expression %q", spec)
	}
	if i := strings.Index(spec, "..."); i >= 0 {
		from, to := spec[:i], spec[i+3:]
		if strings.Contains(from, "..") || strings.Contains(to, "..") {
			return RevSpec{}, errors.Errorf("unsupported ref expression %q", spec)
		}
		return RevSpec{Kind: SymmetricRev, From: orHEAD(from), To: orHEAD(to)}, nil
	}
	if i := strings.Index(spec, ".."); i >= 0 {
		from, to := spec[:i], spec[i+2:]
		if strings.Contains(to, "..") {
			return RevSpec{}, errors.Errorf("unsupported ref expression %q", spec)
		}
		return RevSpec{Kind: RangeRev, From: orHEAD(from), To: orHEAD(to)}, nil
	}
	return RevSpec{Kind: SingleRev, From: spec}, nil
}

func orHEAD(ref string) string {
	if ref == "" {
		return "HEAD"
	}
	return ref
}

func (s RevSpec) String() string {
	switch s.Kind {
	case RangeRev:
		return s.From + ".." + s.To
	case SymmetricRev:
		return s.From + "..." + s.To
	default:
		return s.From
	}
}
