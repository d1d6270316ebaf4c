// Command seed fills the database with built-in groups and generated demo content.
package main

import (
	"context"
	"flag"
	"log"

	"yatube/internal/config"
	"yatube/internal/database"
	"yatube/internal/middleware"
	"yatube/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 150, "Number of posts to create")
	maxComments := flag.Int("comments", 3, "Maximum comments per post")
	follows := flag.Int("follows", 4, "Follows per user")
	shouldClean := flag.Bool("clean", false, "Remove users, posts, comments and follows before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	closer := middleware.ConfigureLogger(middleware.LogOptions{Env: cfg.Env, Level: cfg.LogLevel})
	defer func() { _ = closer.Close() }()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	res, err := seed.Seed(context.Background(), db, seed.Options{
		NumUsers:           *numUsers,
		NumPosts:           *numPosts,
		MaxCommentsPerPost: *maxComments,
		FollowsPerUser:     *follows,
		ShouldClean:        *shouldClean,
		Factory:            seed.FactoryOptions{Seed: *randSeed},
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d groups, %d users, %d posts, %d comments, %d follows",
		res.Groups, res.Users, res.Posts, res.Comments, res.Follows)
	log.Printf("All generated users have the password: %s", seed.DefaultPassword)
}
