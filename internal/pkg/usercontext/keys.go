package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"
	KeyUser        = "user"
	KeyUserID      = "user_id"
)

// Cookie names carrying the tokens for browser clients.
const (
	AccessTokenCookie  = "access_token_cookie"
	RefreshTokenCookie = "refresh_token_cookie"
)
