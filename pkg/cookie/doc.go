// Package cookie reads and writes plain, signed and encrypted cookies.
//
// A [Jar] carries default attributes (path, domain, Secure, HttpOnly,
// SameSite) that individual writes may override:
//
//	jar := cookie.New(cookie.Config{Secure: true}, os.Getenv("APP_KEY"))
//	err := jar.SetEncrypted(w, "remember", token, cookie.MaxAge(30*24*3600))
//
// Signed and encrypted values are bound to the cookie name, so a value
// cannot be replayed under another name. Extra keys passed to [New] are
// accepted when reading, which allows rotating the application key.
package cookie
