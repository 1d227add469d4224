// Package history records entity state changes to InfluxDB.
//
// The Client wraps the official influxdb-client-go v2 library with the
// hub's connection management: token auth, ping on connect, batched
// non-blocking writes and an error callback for async failures.
//
// The Recorder subscribes to state_changed events on the bus and
// writes every numeric state as a point in the entity_state
// measurement. Binary states (on/off, open/closed) are recorded as
// 1/0; unknown and unavailable states are skipped.
//
//	client, err := history.Connect(cfg.History)
//	if err != nil {
//	    // history is optional, log and continue
//	}
//	recorder := history.NewRecorder(client, eventBus, logger)
//	recorder.Start()
//	defer recorder.Stop()
package history
