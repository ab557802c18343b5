package content

import (
	"regexp"

	"github.com/fulmenhq/preflight/pkg/findings"
)

// Rule is one entry of the static regular-expression table.
type Rule struct {
	Name        string
	Regex       *regexp.Regexp
	Severity    findings.Severity
	Description string
}

// Rules is compiled once at package initialization and never mutated.
var Rules = []Rule{
	{
		Name:        "Hex Escape Sequence",
		Regex:       regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){10,}`),
		Severity:    findings.SeverityHigh,
		Description: "Long run of hex-escaped characters, typical of obfuscated payloads",
	},
	{
		Name:        "Unicode Escape Sequence",
		Regex:       regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4}){6,}`),
		Severity:    findings.SeverityMedium,
		Description: "Long run of unicode-escaped characters",
	},
	{
		Name:        "Encoded Payload",
		Regex:       regexp.MustCompile("[\"'`][A-Za-z0-9+/]{200,}={0,2}[\"'`]"),
		Severity:    findings.SeverityMedium,
		Description: "Very long base64-like string literal",
	},
	{
		Name:        "Remote Script Execution",
		Regex:       regexp.MustCompile(`(?i)\b(?:curl|wget)\b[^\n|]*\|\s*(?:sudo\s+)?(?:ba|z)?sh\b`),
		Severity:    findings.SeverityCritical,
		Description: "Downloads a remote script and pipes it into a shell",
	},
	{
		Name:        "Reverse Shell",
		Regex:       regexp.MustCompile(`/dev/(?:tcp|udp)/[\w.\-]+/\d+`),
		Severity:    findings.SeverityCritical,
		Description: "Opens a raw socket through /dev/tcp, the classic reverse shell idiom",
	},
	{
		Name:        "Credential File Access",
		Regex:       regexp.MustCompile(`(?:\.npmrc|\.ssh/id_(?:rsa|dsa|ecdsa|ed25519)|\.aws/credentials|\.git-credentials|\.docker/config\.json)`),
		Severity:    findings.SeverityHigh,
		Description: "References a file that usually holds credentials or tokens",
	},
	{
		Name:        "Discord Webhook",
		Regex:       regexp.MustCompile(`https?://(?:ptb\.|canary\.)?discord(?:app)?\.com/api/webhooks/\d+/[\w-]+`),
		Severity:    findings.SeverityHigh,
		Description: "Discord webhook URL, a common exfiltration channel",
	},
	{
		Name:        "Environment Dump",
		Regex:       regexp.MustCompile(`JSON\.stringify\(\s*process\.env\s*\)`),
		Severity:    findings.SeverityHigh,
		Description: "Serializes the whole process environment",
	},
	{
		Name:        "Child Process Import",
		Regex:       regexp.MustCompile(`require\(\s*['"](?:node:)?child_process['"]\s*\)`),
		Severity:    findings.SeverityMedium,
		Description: "Loads the child_process module",
	},
	{
		Name:        "Character Code Assembly",
		Regex:       regexp.MustCompile(`String\.fromCharCode\(\s*\d+(?:\s*,\s*\d+){9,}`),
		Severity:    findings.SeverityMedium,
		Description: "Builds a string from a long list of character codes",
	},
}
