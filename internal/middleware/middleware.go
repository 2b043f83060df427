package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/antonminaichev/zion-orders/internal/httpx"
	"github.com/antonminaichev/zion-orders/internal/logger"
	"github.com/antonminaichev/zion-orders/internal/metrics"
	"github.com/antonminaichev/zion-orders/internal/signature"
)

const maxWebhookBody = 1 << 20

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func GzipHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gzr, err := gzip.NewReader(r.Body)
			if err != nil {
				httpx.WriteError(rw, http.StatusBadRequest, "Failed to create gzip reader")
				return
			}
			defer gzr.Close()
			r.Body = io.NopCloser(gzr)
			r.Header.Del("Content-Encoding")
		}

		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			rw.Header().Set("Content-Encoding", "gzip")
			gzw := gzip.NewWriter(rw)
			defer gzw.Close()

			gzrw := gzipResponseWriter{Writer: gzw, ResponseWriter: rw}
			next.ServeHTTP(gzrw, r)
		} else {
			next.ServeHTTP(rw, r)
		}
	})
}

// VerifySignature rejects requests whose raw body does not match the
// signature header before any handler sees them. The body is restored for
// the next handler.
func VerifySignature(v *signature.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
			if err != nil {
				httpx.WriteError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}

			if err := v.Verify(body, r.Header.Get(v.Header)); err != nil {
				metrics.SignatureRejected.WithLabelValues(v.Name).Inc()
				logger.Log.WarnContext(r.Context(), "signature rejected",
					"peer", v.Name, "header", v.Header, "error", err)
				httpx.WriteError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !v.Configured() {
				logger.Log.WarnContext(r.Context(), "signature check skipped: secret not configured", "peer", v.Name)
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKeyOperator struct{}

// JWTMiddleware accepts bearer tokens signed with secret whose subject is
// the operator login.
func JWTMiddleware(secret []byte, login string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			tokenStr := strings.TrimPrefix(auth, "Bearer ")

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.Subject != login {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithOperator(r.Context(), claims.Subject)))
		})
	}
}

func OperatorFromContext(ctx context.Context) string {
	login, _ := ctx.Value(ctxKeyOperator{}).(string)
	return login
}

func ContextWithOperator(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, ctxKeyOperator{}, login)
}
