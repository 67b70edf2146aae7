// Package events provides the typed publish/subscribe bus that ties the
// orchestration core together.
//
// Producers (the agent directory, the lifecycle controller, the import
// workflow, the workspace watcher) publish on typed topics; consumers (the
// notification gateway, the controller's transition waiters) subscribe.
//
// # Delivery contract
//
//   - Events on one topic reach each subscriber in publish order.
//   - Nothing is guaranteed across topics.
//   - Only subscriptions registered before Publish see the event; there is no
//     replay.
//   - Every subscription has its own mailbox and dispatch goroutine, so a slow
//     or panicking subscriber never blocks the publisher or its peers.
//   - Release is safe at any time; undelivered events of a released
//     subscription are dropped.
//
// Usage:
//
//	bus := events.NewBus()
//	sub := events.Subscribe(bus, events.LifecycleTopic,
//	    events.SubscriberFunc[api.LifecycleEvent](func(ctx context.Context, ev api.LifecycleEvent) {
//	        fmt.Println(ev.SID, ev.Status)
//	    }))
//	defer sub.Release()
//
//	events.Publish(bus, events.LifecycleTopic, api.NewLifecycleEvent(sid, "svcA", api.LifecycleAfterStarted, ""))
package events
