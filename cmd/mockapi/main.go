package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"iotdash/internal/mockapi"
)

func main() {
	// Load environment variables from .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, relying on system environment variables")
	}

	port := os.Getenv("MOCKAPI_PORT")
	if port == "" {
		port = "8081"
	}

	server := mockapi.NewServer()

	// Emit synthetic readings so connected dashboards have live data.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.RunGenerator(ctx, 2*time.Second)

	// CORS setup
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(server.Router())

	log.Printf("Mock API is running on port %s...", port)
	err = http.ListenAndServe(":"+port, handler)
	if err != nil {
		log.Fatal("Error starting server:", err)
	}
}
