// Package fixtures provides test data factories backed by the repositories.
//
//	tdb := testdb.New(t)
//	f := fixtures.New(tdb.DB)
//	org := f.CreateOrganizer(t)
//	event := f.CreateEvent(t, org, fixtures.WithTiers(model.TicketTier{Name: "VIP", Price: 80, Quantity: 2}))
//	tickets := f.BuyTickets(t, event, f.CreateUser(t), "VIP", 2)
//
// Every fixture user has the password DefaultPassword. Names, titles and
// addresses come from gofakeit; emails get a random suffix so fixtures never
// collide within a namespace.
package fixtures
