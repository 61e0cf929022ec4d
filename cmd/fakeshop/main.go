package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/sweetshop-storefront/internal/auth"
	"github.com/example/sweetshop-storefront/internal/fakeshop"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	if level, err := logrus.ParseLevel(getEnv("FAKESHOP_LOG_LEVEL", "info")); err == nil {
		log.SetLevel(level)
	}

	addr := getEnv("FAKESHOP_ADDR", ":5000")
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("[Fakeshop] JWT_SECRET environment variable is required")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("[Fakeshop] JWT_SECRET must be at least 32 characters long")
	}
	userEmail := getEnv("FAKESHOP_USER_EMAIL", "demo@sweetshop.test")
	userPassword := getEnv("FAKESHOP_USER_PASSWORD", "sweets123")

	shop := fakeshop.New()
	shop.SeedCatalog()
	if _, err := shop.AddUser("Demo Customer", userEmail, userPassword); err != nil {
		log.Fatalf("[Fakeshop] Failed to seed user: %v", err)
	}
	shop.SetFaults(fakeshop.Faults{
		FailCreateOrder:   os.Getenv("FAKESHOP_FAIL_CREATE_ORDER") == "true",
		FailPay:           os.Getenv("FAKESHOP_FAIL_PAY") == "true",
		FailPaymentIntent: os.Getenv("FAKESHOP_FAIL_PAYMENT_INTENT") == "true",
		FailProducts:      os.Getenv("FAKESHOP_FAIL_PRODUCTS") == "true",
	})

	jwtService := auth.NewJWTService(jwtSecret, 30*24*time.Hour)
	router := fakeshop.NewRouter(fakeshop.RouterConfig{
		Shop:       shop,
		JWTService: jwtService,
		Logger:     log,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("[Fakeshop] ========================================")
		log.Info("[Fakeshop] Sweet shop development backend")
		log.Infof("[Fakeshop] Listening on %s", addr)
		log.Infof("[Fakeshop] Demo login: %s", userEmail)
		log.Info("[Fakeshop] ========================================")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Fakeshop] Server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("[Fakeshop] Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("[Fakeshop] Shutdown error: %v", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
