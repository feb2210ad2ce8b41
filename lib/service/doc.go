// Package service is the client facade of a data store universe. It combines the
// one-shot operations of a datastore.IStore with change notification (watch) and
// enumeration (paging).
//
//	svc := service.NewDataStoreService(store, watch.DefaultConfig())
//	defer svc.Close()
//
//	players := svc.GetDataStore("players", "")
//	conn := players.OnUpdate("alice", func(v any) { fmt.Println("alice is now", v) })
//	defer conn.Disconnect()
//
//	keys := players.ListKeys(service.ListKeysOptions{Prefix: "a", PageSize: 20})
//	for page, err := range keys.Pages(ctx) { ... }
//
// The store may be the in-process mstore or the RPC client from rpc/client.
package service
