package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/marilagman/petalsandcrumbs/internal/models"
	"github.com/marilagman/petalsandcrumbs/internal/store"
)

func main() {
	addUserCmd := flag.NewFlagSet("add-user", flag.ExitOnError)
	username := addUserCmd.String("username", "", "Username for the new admin user")
	password := addUserCmd.String("password", "", "Password for the new admin user")

	addRiderCmd := flag.NewFlagSet("add-rider", flag.ExitOnError)
	riderName := addRiderCmd.String("name", "", "Display name for the new rider")
	riderUsername := addRiderCmd.String("username", "", "Email address the rider logs in with")
	riderPassword := addRiderCmd.String("password", "", "Password for the new rider")
	riderPhone := addRiderCmd.String("phone", "", "Contact number (optional)")

	if len(os.Args) < 2 {
		fmt.Println("expected 'add-user' or 'add-rider' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add-user":
		addUserCmd.Parse(os.Args[2:])
		if *username == "" || *password == "" {
			fmt.Println("username and password are required")
			addUserCmd.PrintDefaults()
			os.Exit(1)
		}
		createUser(*username, *password)
	case "add-rider":
		addRiderCmd.Parse(os.Args[2:])
		if *riderName == "" || *riderUsername == "" || *riderPassword == "" {
			fmt.Println("name, username and password are required")
			addRiderCmd.PrintDefaults()
			os.Exit(1)
		}
		createRider(*riderName, *riderUsername, *riderPassword, *riderPhone)
	default:
		fmt.Println("expected 'add-user' or 'add-rider' subcommand")
		os.Exit(1)
	}
}

func openStore() *store.Store {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./petalsandcrumbs.db"
	}

	db, err := store.NewStore(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	// Ensure tables exist if running cli before server
	if err := db.InitSchema(); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}
	return db
}

func createUser(username, password string) {
	db := openStore()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	if err := db.CreateUser(username, string(hashedPassword)); err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User '%s' created successfully.\n", username)
}

func createRider(name, username, password, phone string) {
	db := openStore()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	rider := &models.Rider{
		Name:     name,
		Username: username,
		Password: string(hashedPassword),
		Phone:    phone,
	}
	if err := db.CreateRider(rider); err != nil {
		log.Fatalf("Failed to create rider: %v", err)
	}

	fmt.Printf("Rider '%s' (%s) created successfully.\n", name, username)
}
