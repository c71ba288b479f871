package models

// VisibilityMode controls how the public flag restricts a listing.
type VisibilityMode int

const (
	// VisibilityAll ignores the public flag.
	VisibilityAll VisibilityMode = iota
	// VisibilityStrict returns only rows whose public flag equals Public.
	VisibilityStrict
	// VisibilityOwnerInclusive also returns every row owned by ViewerID.
	VisibilityOwnerInclusive
)

type Visibility struct {
	Mode     VisibilityMode
	Public   bool
	ViewerID string
}

func Unrestricted() Visibility {
	return Visibility{Mode: VisibilityAll}
}

func StrictPublic(public bool) Visibility {
	return Visibility{Mode: VisibilityStrict, Public: public}
}

func PublicOrOwnedBy(viewerID string) Visibility {
	return Visibility{Mode: VisibilityOwnerInclusive, Public: true, ViewerID: viewerID}
}

// VisibilityFor picks the read policy of the public site for a caller:
// admins see everything, signed-in users see public rows plus their own.
func VisibilityFor(viewer *User) Visibility {
	switch {
	case viewer == nil:
		return StrictPublic(true)
	case viewer.Role.AtLeast(RoleAdmin):
		return Unrestricted()
	default:
		return PublicOrOwnedBy(viewer.ID)
	}
}
