package service

import "strings"

// Messages: тексты ошибок, которые видит клиент.
// Форматные строки содержат ровно один %s.
type Messages struct {
	InvalidCredentials string
	UserDisabled       string
	AuthError          string // %s: код причины от провайдера
	InvalidIdentity    string
	IdentityDown       string // %s: описание сбоя
	MissingAPIKey      string
	IncompleteIdentity string
	ProfileNotFound    string
	EmailExists        string
	Rejected           string // %s: код причины от провайдера
	MissingToken       string
	InvalidToken       string
	InvalidRole        string
	MissingFields      string

	ProductNotFound   string
	VendorsOnly       string
	UpdateForeign     string
	DeleteForeign     string
	InvalidProduct    string
	ImageUploadFailed string

	OrderNotFound  string
	OrderForbidden string
	InvalidOrder   string
	InvalidStatus  string
}

// English: каталог по умолчанию.
var English = Messages{
	InvalidCredentials: "Invalid email or password",
	UserDisabled:       "This user account is disabled",
	AuthError:          "Authentication error: %s",
	InvalidIdentity:    "Invalid credentials",
	IdentityDown:       "Authentication service unavailable: %s",
	MissingAPIKey:      "Identity web API key not configured",
	IncompleteIdentity: "Failed to retrieve token or user ID from identity provider",
	ProfileNotFound:    "User data not found in database",
	EmailExists:        "Email already exists",
	Rejected:           "Registration rejected: %s",
	MissingToken:       "Not authenticated",
	InvalidToken:       "Invalid authentication credentials",
	InvalidRole:        "Unknown user role",
	MissingFields:      "Missing required fields",

	ProductNotFound:   "Product not found",
	VendorsOnly:       "Only vendors can create products",
	UpdateForeign:     "You can only update your own products",
	DeleteForeign:     "You can only delete your own products",
	InvalidProduct:    "Invalid product fields",
	ImageUploadFailed: "Error uploading image",

	OrderNotFound:  "Order not found",
	OrderForbidden: "You don't have permission to view this order",
	InvalidOrder:   "Order must contain at least one item with a positive quantity",
	InvalidStatus:  "Unknown order status",
}

// French заменяет сообщения аутентификации французскими формулировками.
var French = func() Messages {
	m := English
	m.InvalidCredentials = "Email ou mot de passe incorrect"
	m.UserDisabled = "Ce compte utilisateur est désactivé"
	m.AuthError = "Erreur d'authentification: %s"
	m.InvalidIdentity = "Identifiants invalides"
	m.IdentityDown = "Service d'authentification indisponible: %s"
	return m
}()

// MessagesFor выбирает каталог по коду локали. Неизвестная локаль даёт English.
func MessagesFor(locale string) Messages {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "fr", "fr_fr", "fr-fr":
		return French
	default:
		return English
	}
}
