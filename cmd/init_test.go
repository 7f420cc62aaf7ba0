package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheVenuePresents/VenueBot-Main/venuebot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestInitCommand(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	dataFile := filepath.Join(tempDir, "venuebot_data.json")

	os.Setenv("VB_DATABASE_TYPE", "sqlite")
	os.Setenv("VB_DATABASE", dbPath)
	os.Setenv("VB_STORAGE_DATA_FILE", dataFile)
	t.Cleanup(
		func() {
			os.Unsetenv("VB_DATABASE_TYPE")
			os.Unsetenv("VB_DATABASE")
			os.Unsetenv("VB_STORAGE_DATA_FILE")
		},
	)

	// Mock user input
	oldStdin := os.Stdin
	t.Cleanup(
		func() {
			os.Stdin = oldStdin
		},
	)

	mockSecretReader := func() ([]byte, error) {
		return []byte("test-bot-token"), nil
	}

	t.Cleanup(
		func() {
			customSecretReader = nil
		},
	)

	customSecretReader = mockSecretReader

	input := "100000000000000001\n100000000000000002\n"
	r, w, _ := os.Pipe()
	os.Stdin = r
	go func() {
		_, _ = w.Write([]byte(input))
		_ = w.Close()
	}()

	currentOut := rootCmd.OutOrStdout()
	currentErr := rootCmd.OutOrStderr()
	t.Cleanup(
		func() {
			rootCmd.SetOut(currentOut)
			rootCmd.SetErr(currentErr)
		},
	)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	rootCmd.SetArgs([]string{"init"})
	err := rootCmd.Execute()
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")

	// Verify the output
	output := out.String()
	t.Logf("output: %s", output)
	assert.Contains(t, output, "Discord credentials are not stored. Let's set them up.")
	assert.Contains(t, output, "Enter discord bot token:")
	assert.Contains(t, output, "Enter host channel ID:")
	assert.Contains(t, output, "Enter log channel ID:")
	assert.Contains(t, output, "Discord credentials stored successfully.")
	assert.Contains(t, output, "Initialization complete")

	// Verify the database schema
	db, err := gorm.Open(sqlite.Open(dbPath))
	require.NoError(t, err)

	t.Cleanup(
		func() {
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)

	assert.True(t, db.Migrator().HasTable(&venuebot.TriggerEvent{}))

	// Verify the stored credentials
	store := venuebot.NewStorage(
		&venuebot.StorageConfig{DataFile: dataFile},
		nil,
		nil,
	)
	stored := store.BotConfig(context.Background())
	require.NotNil(t, stored)
	assert.Equal(t, "test-bot-token", stored.Token)
	assert.Equal(t, "100000000000000001", stored.ChannelID)
	assert.Equal(t, "100000000000000002", stored.LogChannelID)
}

func TestInitCommandCredentialsAlreadyStored(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")
	dataFile := filepath.Join(tempDir, "venuebot_data.json")

	os.Setenv("VB_DATABASE_TYPE", "sqlite")
	os.Setenv("VB_DATABASE", dbPath)
	os.Setenv("VB_STORAGE_DATA_FILE", dataFile)
	t.Cleanup(
		func() {
			os.Unsetenv("VB_DATABASE_TYPE")
			os.Unsetenv("VB_DATABASE")
			os.Unsetenv("VB_STORAGE_DATA_FILE")
		},
	)

	store := venuebot.NewStorage(
		&venuebot.StorageConfig{DataFile: dataFile},
		nil,
		nil,
	)
	require.NoError(
		t, store.SaveBotConfig(
			context.Background(), venuebot.StoredBotConfig{
				Token:        "existing-token",
				ChannelID:    "100000000000000001",
				LogChannelID: "100000000000000002",
			},
		),
	)

	currentOut := rootCmd.OutOrStdout()
	currentErr := rootCmd.OutOrStderr()
	t.Cleanup(
		func() {
			rootCmd.SetOut(currentOut)
			rootCmd.SetErr(currentErr)
		},
	)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)

	rootCmd.SetArgs([]string{"init"})
	require.NoError(t, rootCmd.Execute())

	output := out.String()
	assert.Contains(t, output, "Discord credentials are already stored.")
	assert.Contains(t, output, "Initialization complete")
}
