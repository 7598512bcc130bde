// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecurityAccess                       // User access token required
	SecurityService                      // Service token required (cron, payment callbacks)
)

// EndpointSecurityConfig maps route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"Healthz": SecurityPublic,

	// Ledgers - Access Protected
	"CreateLedger":  SecurityAccess,
	"ListLedgers":   SecurityAccess,
	"GetLedger":     SecurityAccess,
	"ResizeLedger":  SecurityAccess,
	"AddCopies":     SecurityAccess,
	"RemoveCopies":  SecurityAccess,
	"SetDeposit":    SecurityAccess,
	"RemoveDeposit": SecurityAccess,
	"DeleteLedger":  SecurityAccess,

	// Loans - Access Protected
	"RequestBorrow": SecurityAccess,
	"ListLoans":     SecurityAccess,
	"GetLoan":       SecurityAccess,
	"ConfirmLoan":   SecurityAccess,
	"ExtendLoan":    SecurityAccess,
	"SuspendLoan":   SecurityAccess,
	"CancelLoan":    SecurityAccess,
	"ConfirmReturn": SecurityAccess,
	// Owners may flag overdue loans themselves; the external trigger uses a service token
	"MarkOverdue": SecurityAccess,

	// Balance - Access Protected
	"GetBalance":      SecurityAccess,
	"GetTransactions": SecurityAccess,

	// Balance - Service Protected
	"TopUpBalance": SecurityService,
}

// GetSecurityLevel returns the security level for a given route
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to access for unknown routes
	return SecurityAccess
}
