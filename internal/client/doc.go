// Package client is a typed JSON-RPC client for the sensor daemon.
//
// Calls map one-to-one onto the sensor's methods. The Wait helpers poll
// with a fixed interval and a fixed attempt budget, treating dropped
// connections and malformed replies as failed attempts, which is how a
// rebooting sensor looks from the outside.
//
//	c := client.New("http://127.0.0.1:8080", pin)
//	if _, err := c.Reboot(ctx); err != nil {
//	    return err
//	}
//	info, err := c.WaitOnline(ctx, client.DefaultOnlineWait)
package client
