// Package db opens pgx connection pools and runs goose migrations.
//
//	pool, err := db.Open(ctx, db.Config{URL: os.Getenv("DATABASE_URL")})
//	if err != nil {
//		return err
//	}
//	err = db.Migrate(ctx, pool, session.Migrations, "session_migrations", log)
//
// Connection settings come from the "database" section of the application
// config; zero values fall back to the defaults documented on [Config].
package db
