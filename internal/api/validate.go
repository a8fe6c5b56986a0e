package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// decodeStrict decodes r.Body into dst, rejecting unknown fields and
// trailing content so a malformed submission fails fast with
// validation_error instead of silently ignoring extra keys.
func decodeStrict(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return validationErr("failed to read request body", "")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return validationErr("request body is required", "")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return validationErr("request body does not match the expected schema: "+err.Error(), "")
	}
	if dec.More() {
		return validationErr("request body contains trailing content", "")
	}
	return nil
}

// urlHostPattern matches the host segment of an http(s):// URL embedded
// anywhere in a command string, per spec.md §4.4's allowlist rule.
var urlHostPattern = regexp.MustCompile(`https?://([^/\s]+)`)

// extractHosts returns the lowercased, deduplicated set of hosts
// referenced by http(s):// URLs in command.
func extractHosts(command string) []string {
	matches := urlHostPattern.FindAllStringSubmatch(command, -1)
	seen := make(map[string]bool, len(matches))
	var hosts []string
	for _, m := range matches {
		host := strings.ToLower(m[1])
		if !seen[host] {
			seen[host] = true
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// checkAllowlist rejects command if it references any host outside
// allowlist. An empty or nil allowlist means no restriction is in effect.
func checkAllowlist(command string, allowlist []string) error {
	if len(allowlist) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(allowlist))
	for _, h := range allowlist {
		allowed[strings.ToLower(h)] = true
	}
	for _, host := range extractHosts(command) {
		if !allowed[host] {
			return policyDeniedErr("command references host " + host + " which is not in the allowlist")
		}
	}
	return nil
}
