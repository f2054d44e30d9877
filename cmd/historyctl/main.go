package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dom/blueming-client/internal/domain"
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
	case "login":
		err = loginCmd(args)
	case "history":
		err = historyCmd(args)
	case "training":
		err = trainingCmd(args)
	case "models":
		err = modelsCmd(args)
	case "profile":
		err = profileCmd(args)
	case "logout":
		err = logoutCmd(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`historyctl - Blueming AI history from the command line

USAGE:
  historyctl <command> [options]

COMMANDS:
  login     Sign in through the gateway's test login endpoint
  history   Page through generation history, optionally downloading images
  training  List training jobs
  models    List your own and liked models
  profile   Show or rename the signed-in profile
  logout    Clear the stored session
  help      Show this help message

ENVIRONMENT:
  API_BASE_URL  Gateway base URL (required)
  STORAGE_URL   Session storage, shared with the client (default: data/blueming.db)
  DOWNLOAD_DIR  Where downloaded images are saved (default: downloads)

EXAMPLES:
  # Sign in, then list the first three pages of 10
  historyctl login
  historyctl history --pages=3 --size=10

  # Only entries generated with model 42, saving every thumbnail
  historyctl history --model=42 --download

  # Change nickname
  historyctl profile --nickname=bloom`)
}

func loginCmd(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Print("Signing in... ")
	profile, err := a.services.Auth.TestLogin(ctx)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Printf("OK (user: %s, id %d)\n", profile.Nickname, profile.ID)
	return nil
}

func historyCmd(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	pages := fs.Int("pages", 1, "Number of pages to load")
	size := fs.Int("size", 0, "Page size (default HISTORY_PAGE_SIZE)")
	model := fs.Int64("model", 0, "Only entries generated with this model id")
	download := fs.Bool("download", false, "Download every loaded thumbnail")
	fs.Parse(args)

	if *pages < 1 {
		return fmt.Errorf("--pages must be at least 1")
	}

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.services.Tokens.RequireAuth() {
		a.printNotices()
		return fmt.Errorf("not signed in, run 'historyctl login' first")
	}

	if *size <= 0 {
		*size = a.cfg.HistoryPageSize
	}
	var modelID *int64
	if *model != 0 {
		modelID = model
	}

	history := a.services.History
	if _, err := history.LoadGenerationHistory(ctx, 0, *size, false, modelID); err != nil {
		return err
	}
	for i := 1; i < *pages; i++ {
		issued, err := history.LoadMoreHistory(ctx, *size, modelID)
		if err != nil {
			return err
		}
		if !issued {
			break
		}
	}

	snap := history.Snapshot()
	fmt.Printf("Generation history (page %d of %d):\n\n", snap.PageIndex+1, snap.TotalPages)
	for _, entry := range snap.Items {
		title := entry.ModelTitle
		if title == "" {
			title = "-"
		}
		fmt.Printf("  #%-6d %-10s %-16s %s\n", entry.ID, entry.Status, title, truncate(entry.Prompt, 60))
	}
	if snap.HasMore {
		fmt.Println("\n  (more pages available)")
	}

	if !*download {
		return nil
	}

	fmt.Println()
	var failed, skipped int
	for _, entry := range snap.Items {
		imageURL := ""
		if entry.ThumbnailURL != nil {
			imageURL = *entry.ThumbnailURL
		}
		path, err := history.DownloadImage(ctx, imageURL, entry.ID)
		if err != nil {
			failed++
			fmt.Printf("  #%d FAILED: %v\n", entry.ID, err)
			a.printNotices()
			continue
		}
		if path == "" {
			skipped++
			fmt.Printf("  #%d skipped\n", entry.ID)
			a.printNotices()
			continue
		}
		fmt.Printf("  #%d saved to %s\n", entry.ID, path)
	}
	if skipped > 0 {
		fmt.Printf("\n  %d entries had no image\n", skipped)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(snap.Items)-skipped)
	}
	return nil
}

func trainingCmd(args []string) error {
	fs := flag.NewFlagSet("training", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.services.Tokens.RequireAuth() {
		a.printNotices()
		return fmt.Errorf("not signed in, run 'historyctl login' first")
	}

	entries, err := a.services.History.LoadTrainingHistory(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Training jobs (%d):\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  #%-6d %-10s %3d%%  %s (%s)\n", e.ID, e.Status, e.Progress, e.ModelName, e.BaseModel)
	}
	return nil
}

func modelsCmd(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.services.Tokens.RequireAuth() {
		a.printNotices()
		return fmt.Errorf("not signed in, run 'historyctl login' first")
	}

	models := a.services.Models
	refreshErr := models.RefreshAllModels(ctx)

	printModels := func(title string, list []domain.LoraModel) {
		fmt.Printf("%s (%d):\n", title, len(list))
		for _, m := range list {
			fmt.Printf("  #%-6d %s\n", m.ID, m.Title)
		}
		fmt.Println()
	}
	printModels("My models", models.MyModels())
	printModels("Liked models", models.LikedModels())

	return refreshErr
}

func profileCmd(args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	nickname := fs.String("nickname", "", "New nickname")
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.services.Tokens.RequireAuth() {
		a.printNotices()
		return fmt.Errorf("not signed in, run 'historyctl login' first")
	}

	profile, err := a.services.Profile.LoadUserProfile(ctx)
	if err != nil {
		a.printNotices()
		return err
	}

	if name := strings.TrimSpace(*nickname); name != "" {
		fmt.Printf("Renaming %s to %s... ", profile.Nickname, name)
		profile, err = a.services.Profile.UpdateProfile(ctx, domain.ProfileUpdate{Nickname: name})
		if err != nil {
			fmt.Println("FAILED")
			a.printNotices()
			return err
		}
		fmt.Println("OK")
	}

	fmt.Println()
	fmt.Printf("  ID:       %d\n", profile.ID)
	fmt.Printf("  Email:    %s\n", profile.Email)
	fmt.Printf("  Nickname: %s\n", profile.Nickname)
	fmt.Printf("  Role:     %s\n", profile.Role)
	return nil
}

func logoutCmd(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ExitOnError)
	fs.Parse(args)

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.services.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
