package duoapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// canonParams encodes params sorted by key with RFC 3986 escaping, which is
// what Duo hashes and also what goes on the wire.
func canonParams(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := append([]string(nil), params[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, escape(k)+"="+escape(v))
		}
	}
	return strings.Join(parts, "&")
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// canonRequest builds the v2 signing string.
func canonRequest(date, method, host, path string, params url.Values) string {
	return strings.Join([]string{
		date,
		strings.ToUpper(method),
		strings.ToLower(host),
		path,
		canonParams(params),
	}, "\n")
}

// sign returns the value of the Authorization header for a request.
func sign(ikey, skey, date, method, host, path string, params url.Values) string {
	mac := hmac.New(sha1.New, []byte(skey))
	mac.Write([]byte(canonRequest(date, method, host, path, params)))
	sig := hex.EncodeToString(mac.Sum(nil))

	return "Basic " + base64.StdEncoding.EncodeToString([]byte(ikey+":"+sig))
}
