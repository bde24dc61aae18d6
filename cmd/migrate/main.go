package main

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// Usage: migrate [up|down|steps N|version]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		check(m.Up())
		log.Println("Migration up successful")
	case "down":
		check(m.Down())
		log.Println("Migration down successful")
	case "steps":
		if len(os.Args) < 3 {
			log.Fatal("steps needs a count, e.g. steps -1")
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("invalid step count %q", os.Args[2])
		}
		check(m.Steps(n))
		log.Printf("Migrated %d steps", n)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Println("No migrations applied")
			return
		}
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Version %d (dirty=%t)", version, dirty)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}

func check(err error) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal(err)
	}
}

// findMigrationsDir honours MIGRATIONS_DIR, then walks up from the working
// directory and the executable looking for a migrations folder.
func findMigrationsDir() (string, error) {
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		return filepath.Abs(dir)
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, parents(cwd, 6)...)
	}
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, parents(filepath.Dir(exePath), 3)...)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("migrations directory not found")
}

func parents(start string, depth int) []string {
	dirs := make([]string, 0, depth)
	current := start
	for range depth {
		dirs = append(dirs, filepath.Join(current, "migrations"))
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return dirs
}
