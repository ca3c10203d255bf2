package main

import (
	"context"
	"fmt"
)

// addUser updates or creates an active admin.
func (cli *commandLine) addUser(name, uname, email, pwd string, isOwner bool) error {
	usr, err := cli.usrSvc.AddUser(context.Background(), name, uname, email, pwd, isOwner)
	if err != nil {
		return err
	}
	fmt.Printf("admin %q saved (id: %d)\n", usr.Username, usr.ID)
	return nil
}
