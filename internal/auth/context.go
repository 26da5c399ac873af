package auth

import "context"

type contextKey struct{}

// AuthContext identifies the member behind a request. HouseholdID is empty
// until the member creates or joins a household.
type AuthContext struct {
	UserID      string
	HouseholdID string
	DisplayName string
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func HouseholdID(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.HouseholdID
}

func UserID(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.UserID
}

// InHousehold reports whether the request's member belongs to a household.
func InHousehold(ctx context.Context) bool {
	return HouseholdID(ctx) != ""
}
