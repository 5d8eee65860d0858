package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"execgate/pkg/crypto"
)

// OperatorAuth - middleware аутентификации операторских действий
//
// Проверяет Bearer токен из заголовка Authorization против bcrypt-хэша
// из конфигурации (OPERATOR_TOKEN_HASH). Сам токен нигде не хранится.
//
// Если хэш не настроен:
//   - ENV=development: доступ разрешён (локальная разработка)
//   - иначе: все защищённые маршруты недоступны (403)
func OperatorAuth(tokenHash string, logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				if os.Getenv("ENV") == "development" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "Operator endpoints disabled. Set OPERATOR_TOKEN_HASH.", http.StatusForbidden)
				return
			}

			token := bearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="operator"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if !crypto.CheckTokenMatch(token, tokenHash) {
				logger.Warn("неверный операторский токен",
					zap.String("remote", r.RemoteAddr),
					zap.String("path", r.URL.Path))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken извлекает токен из заголовка Authorization
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
