package auth

import (
	"crypto/md5"
	"fmt"
)

// ComputeMD5Password computes the "md5"-prefixed password hash PostgreSQL
// expects in response to an MD5 authentication request.
//
// Format: "md5" + md5(md5(password + username) + salt)
func ComputeMD5Password(creds Credentials, salt [4]byte) string {
	inner := md5.New()
	inner.Write([]byte(creds.Password()))
	inner.Write([]byte(creds.Username()))
	innerHex := fmt.Sprintf("%x", inner.Sum(nil))

	outer := md5.New()
	outer.Write([]byte(innerHex))
	outer.Write(salt[:])
	return "md5" + fmt.Sprintf("%x", outer.Sum(nil))
}
