// Package containers starts Docker containers for integration tests via
// testcontainers-go: MySQL for the repository layer and Eclipse Mosquitto
// for MQTT intake.
//
// Containers are typically managed from TestMain:
//
//	var mysqlContainer *containers.MySQLContainer
//
//	func TestMain(m *testing.M) {
//	    var err error
//	    mysqlContainer, err = containers.NewMySQLContainer(context.Background(), nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    code := m.Run()
//	    _ = mysqlContainer.Terminate(context.Background())
//	    os.Exit(code)
//	}
//
// Tests using this package carry the "integration" build tag:
//
//	go test -tags=integration ./...
package containers
