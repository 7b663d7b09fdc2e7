package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "auth":
		err = handleAuth(args)
	case "meals":
		err = handleMeals(args)
	case "analyze":
		err = analyze(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func handleAuth(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: plateai auth <signup|signin|logout|who>")
		return nil
	}

	switch args[0] {
	case "signup":
		return signup(args[1:])
	case "signin":
		return signin(args[1:])
	case "logout":
		os.Remove(tokenFile())
		fmt.Println("✓ Logged out")
		return nil
	case "who":
		token := loadToken()
		if token == "" {
			fmt.Println("Not logged in")
			return nil
		}
		fmt.Printf("✓ Logged in (token: %s...)\n", token[:min(20, len(token))])
		return nil
	default:
		return fmt.Errorf("unknown auth command: %s", args[0])
	}
}

func handleMeals(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: plateai meals <list|get|add|delete>")
		return nil
	}

	switch args[0] {
	case "list":
		return listMeals()
	case "get":
		if len(args) < 2 {
			return errors.New("usage: plateai meals get <meal-id>")
		}
		return getMeal(args[1])
	case "add":
		return addMeal(args[1:])
	case "delete":
		if len(args) < 2 {
			return errors.New("usage: plateai meals delete <meal-id>")
		}
		if err := client().deleteMeal(context.Background(), args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Meal deleted: %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown meals command: %s", args[0])
	}
}

func signup(args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	if *name == "" || *username == "" || *password == "" {
		fs.PrintDefaults()
		return errors.New("name, username and password are required")
	}

	result, err := client().signup(context.Background(), *name, *username, *password)
	if err != nil {
		return fmt.Errorf("signup failed: %w", err)
	}
	if err := saveToken(result.Token); err != nil {
		return err
	}
	fmt.Printf("✓ User registered: %s (%s)\n", *username, result.UserID)
	return nil
}

func signin(args []string) error {
	fs := flag.NewFlagSet("signin", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	if *username == "" || *password == "" {
		fs.PrintDefaults()
		return errors.New("username and password are required")
	}

	result, err := client().signin(context.Background(), *username, *password)
	if err != nil {
		return fmt.Errorf("signin failed: %w", err)
	}
	if err := saveToken(result.Token); err != nil {
		return err
	}
	fmt.Printf("✓ Logged in as: %s\n", *username)
	return nil
}

func listMeals() error {
	meals, err := client().listMeals(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCALORIES\tDESCRIPTION")
	for _, m := range meals {
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\n", m.MealID, m.MealDate.Format(time.RFC3339), m.TotalCalories, deref(m.Description))
	}
	return w.Flush()
}

func getMeal(id string) error {
	meal, err := client().getMeal(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  %s\n", meal.MealID, meal.MealDate.Format(time.RFC3339), deref(meal.Description))
	printComponents(meal.Components)
	return nil
}

func addMeal(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	date := fs.String("date", time.Now().UTC().Format(time.RFC3339), "meal date (RFC 3339)")
	description := fs.String("description", "", "meal description")
	var components componentFlags
	fs.Var(&components, "component", "component as name:calories:fat:protein:carbs (repeatable)")
	fs.Parse(args)

	payload := mealPayload{MealDate: *date, Components: []mealComponent(components)}
	if payload.Components == nil {
		payload.Components = []mealComponent{}
	}
	if *description != "" {
		payload.Description = description
	}

	id, err := client().createMeal(context.Background(), payload)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Meal saved: %s\n", id)
	return nil
}

func analyze(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: plateai analyze <description>")
	}

	components, err := client().analyze(context.Background(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	if len(components) == 0 {
		fmt.Println("No food items detected")
		return nil
	}
	printComponents(components)
	return nil
}

func printComponents(components []mealComponent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCALORIES\tFAT (g)\tPROTEIN (g)\tCARBS (g)")
	for _, c := range components {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.1f\t%.1f\n", c.Name, c.Calories, c.FatG, c.ProteinG, c.CarbsG)
	}
	w.Flush()
}

// componentFlags collects repeated -component values
type componentFlags []mealComponent

func (f *componentFlags) String() string {
	return fmt.Sprintf("%d components", len(*f))
}

func (f *componentFlags) Set(value string) error {
	c, err := parseComponent(value)
	if err != nil {
		return err
	}
	*f = append(*f, c)
	return nil
}

func parseComponent(value string) (mealComponent, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 5 {
		return mealComponent{}, fmt.Errorf("component %q: want name:calories:fat:protein:carbs", value)
	}

	nums := make([]float64, 4)
	for i, p := range parts[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mealComponent{}, fmt.Errorf("component %q: %w", value, err)
		}
		nums[i] = v
	}
	return mealComponent{
		Name:     strings.TrimSpace(parts[0]),
		Calories: nums[0],
		FatG:     nums[1],
		ProteinG: nums[2],
		CarbsG:   nums[3],
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Helper functions
func client() *apiClient {
	return newAPIClient(getAPIURL(), loadToken())
}

func getAPIURL() string {
	if url := os.Getenv("PLATEAI_API"); url != "" {
		return url
	}
	return "http://localhost:8000"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".plateai", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0o600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return strings.TrimSpace(string(data))
}

func printUsage() {
	fmt.Print(`PlateAI CLI

Usage:
  plateai <command> [options]

Commands:
  auth       Authentication (signup, signin, logout, who)
  meals      Meal operations (list, get, add, delete)
  analyze    Estimate nutrition for a free-text description
  help       Show this help message

Environment Variables:
  PLATEAI_API    API endpoint (default: http://localhost:8000)

Examples:
  plateai auth signup -name "Jane" -username jane -password secret
  plateai meals add -description lunch -component "rice:200:1:4:45"
  plateai meals list
  plateai analyze "two eggs and toast"
`)
}
