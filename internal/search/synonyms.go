package search

// APISynonyms maps API-documentation vocabulary to related terms.
// Keys are lowercase; lookups normalize first. The map bridges the
// gap between how users phrase a search ("get users") and how docs
// phrase the same operation ("list", "retrieve", "fetch").
var APISynonyms = map[string][]string{
	// HTTP verbs and CRUD vocabulary
	"get":    {"fetch", "retrieve", "list", "read"},
	"fetch":  {"get", "retrieve", "read"},
	"list":   {"get", "enumerate", "index"},
	"create": {"post", "add", "insert", "new"},
	"post":   {"create", "add", "submit"},
	"update": {"put", "patch", "modify", "edit"},
	"put":    {"update", "replace"},
	"patch":  {"update", "modify"},
	"delete": {"remove", "destroy", "del"},
	"remove": {"delete", "destroy"},

	// Auth and security
	"auth":           {"authentication", "authorization", "login"},
	"authentication": {"auth", "login", "credentials"},
	"token":          {"bearer", "jwt", "apikey", "credential"},
	"login":          {"signin", "authenticate", "auth"},
	"logout":         {"signout", "revoke"},
	"oauth":          {"oauth2", "authorization", "sso"},
	"key":            {"apikey", "token", "secret"},
	"permission":     {"scope", "role", "access"},

	// Resources and entities
	"user":    {"account", "member", "profile"},
	"account": {"user", "profile"},
	"org":     {"organization", "team", "workspace"},
	"file":    {"document", "attachment", "blob", "upload"},
	"image":   {"photo", "picture", "media"},
	"message": {"notification", "email", "event"},

	// Responses and errors
	"error":    {"failure", "exception", "fault"},
	"failure":  {"error", "exception"},
	"status":   {"state", "health", "code"},
	"response": {"result", "reply", "payload"},
	"request":  {"call", "query", "payload"},

	// Pagination and querying
	"paginate":   {"pagination", "page", "cursor"},
	"pagination": {"paginate", "page", "cursor", "offset"},
	"page":       {"pagination", "cursor", "offset"},
	"search":     {"query", "find", "lookup", "filter"},
	"query":      {"search", "filter", "lookup"},
	"filter":     {"query", "search", "criteria"},
	"sort":       {"order", "rank"},
	"limit":      {"size", "count", "max"},

	// Transport and formats
	"webhook":  {"callback", "hook", "event"},
	"callback": {"webhook", "hook"},
	"json":     {"payload", "body"},
	"endpoint": {"route", "url", "path", "api"},
	"route":    {"endpoint", "path", "url"},
	"header":   {"headers", "metadata"},
	"stream":   {"streaming", "sse", "websocket"},
	"upload":   {"post", "attach", "file"},
	"download": {"get", "fetch", "export"},

	// Rate limiting and quotas
	"rate":     {"ratelimit", "throttle", "quota"},
	"throttle": {"ratelimit", "rate", "limit"},
	"quota":    {"limit", "usage", "allowance"},
	"retry":    {"backoff", "retries"},
	"timeout":  {"deadline", "expiry"},

	// Versioning and lifecycle
	"version":    {"versioning", "revision", "v1"},
	"deprecated": {"legacy", "sunset", "obsolete"},
	"migrate":    {"migration", "upgrade"},
}
