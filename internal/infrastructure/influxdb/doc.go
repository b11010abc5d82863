// Package influxdb exports installation telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring, and
// adds an Exporter that writes a snapshot of every installation whenever
// the installation store changes.
//
// # Measurements
//
//   - installation: tagged by installation and name. Fields carry the
//     connection flag, operating mode, global energy level, outside
//     temperatures, pump state and mixed circuit 1 values.
//   - channel: tagged by installation, zone, zone_name and channel.
//     Fields carry current and target temperature, humidity, energy
//     level and demand.
//
// Temperatures are written as received: integer tenths of a degree
// Fahrenheit.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	exporter := influxdb.NewExporter(client, store)
//	stop := exporter.Start()
//	defer stop()
//
// # Thread Safety
//
// All methods are safe for concurrent use. Write errors are delivered
// asynchronously through the SetOnError callback.
package influxdb
