package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postern/internal/config"
	"postern/internal/usermgmt"
)

var commandAddUser = &cobra.Command{
	Use:   "add-user <username> <password>",
	Short: "Add a user to the database",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		if err := db.Add(args[0], args[1]); err != nil {
			logrus.Fatal("add user: ", err)
		}
		fmt.Printf("User '%s' added successfully!\n", args[0])
	},
}

var commandRemoveUser = &cobra.Command{
	Use:   "remove-user <username>",
	Short: "Remove a user from the database",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		if err := db.Remove(args[0]); err != nil {
			logrus.Fatal("remove user: ", err)
		}
		fmt.Printf("User '%s' removed successfully!\n", args[0])
	},
}

var commandSetPassword = &cobra.Command{
	Use:   "set-password <username> <password>",
	Short: "Change a user's password",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		if err := db.SetPassword(args[0], args[1]); err != nil {
			logrus.Fatal("set password: ", err)
		}
		fmt.Printf("Password for '%s' updated successfully!\n", args[0])
	},
}

var commandEnableUser = &cobra.Command{
	Use:   "enable-user <username>",
	Short: "Enable a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		if err := db.Enable(args[0]); err != nil {
			logrus.Fatal("enable user: ", err)
		}
		fmt.Printf("User '%s' enabled successfully!\n", args[0])
	},
}

var commandDisableUser = &cobra.Command{
	Use:   "disable-user <username>",
	Short: "Disable a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		if err := db.Disable(args[0]); err != nil {
			logrus.Fatal("disable user: ", err)
		}
		fmt.Printf("User '%s' disabled successfully!\n", args[0])
	},
}

var commandListUsers = &cobra.Command{
	Use:   "list-users",
	Short: "List all users",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		db := openUserDB()
		names := db.Names()
		if len(names) == 0 {
			fmt.Println("No users found.")
			return
		}
		for _, name := range names {
			user, err := db.Get(name)
			if err != nil {
				continue
			}
			status := "enabled"
			if !user.Enabled {
				status = "disabled"
			}
			last := "never"
			if user.LastLogin != nil {
				last = user.LastLogin.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%-20s %-10s last login: %s\n", name, status, last)
		}
	},
}

func init() {
	mainCommand.AddCommand(commandAddUser)
	mainCommand.AddCommand(commandRemoveUser)
	mainCommand.AddCommand(commandSetPassword)
	mainCommand.AddCommand(commandEnableUser)
	mainCommand.AddCommand(commandDisableUser)
	mainCommand.AddCommand(commandListUsers)
}

func openUserDB() *usermgmt.DB {
	cfg := loadConfig()
	path := cfg.SSH.UserDB
	if path == "" {
		var err error
		if path, err = config.Path("users.json"); err != nil {
			logrus.Fatal(err)
		}
	}
	db, err := usermgmt.Open(path)
	if err != nil {
		logrus.Fatal("open user database: ", err)
	}
	return db
}
