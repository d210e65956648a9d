// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend_test

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	"github.com/relabs-tech/docrest/core/backend"
	"github.com/relabs-tech/docrest/core/client"
	"github.com/relabs-tech/docrest/core/notify"
	"github.com/relabs-tech/docrest/core/store"
	"github.com/relabs-tech/docrest/core/store/memory"
	"github.com/relabs-tech/docrest/core/store/mongostore"
)

// TestService is a backend together with an in-process client
type TestService struct {
	MongoURI string `env:"MONGO_URI"`

	Store    store.Store
	Router   *mux.Router
	Notifier *notify.Recorder
	backend  *backend.Backend
	client   client.Client
}

// CreateTestService creates a new service that can be used for testing. The documents are
// kept in memory, or in a fresh mongo database named after the test if MONGO_URI is set.
// modify can change the builder before the backend is created.
func CreateTestService(config, name string, modify ...func(*backend.Builder)) *TestService {
	s := TestService{}
	if err := envdecode.Decode(&s); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		panic(err)
	}

	if s.MongoURI != "" {
		ctx := context.Background()
		mongo, err := mongostore.Open(ctx, s.MongoURI, "test_"+sanitize(name))
		if err != nil {
			panic(err)
		}
		if err := mongo.Drop(ctx); err != nil {
			panic(err)
		}
		s.Store = mongo
	} else {
		s.Store = memory.New()
	}

	s.Router = mux.NewRouter()
	s.Notifier = &notify.Recorder{}
	builder := backend.Builder{
		Config:   config,
		Store:    s.Store,
		Router:   s.Router,
		Notifier: s.Notifier,
	}
	for _, m := range modify {
		m(&builder)
	}
	s.backend = backend.New(&builder)
	s.client = client.NewWithRouter(s.Router).WithPrefix(s.backend.Config().Context)
	return &s
}

// Close closes the store of the service
func (s *TestService) Close() {
	s.Store.Close(context.Background())
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}
