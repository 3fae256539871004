package busclienttempdata

import (
	"database/sql"
	"fmt"
)

func (th *TempHandler) create(temp Temperature) error {
	const query = `
		INSERT INTO templog
		(
			ExecutionIdentifier,
			SensorName,
			Timestamp,
			TemperatureInC,
			Band,
			ReadFailed,
			HasBeenSentToBrewfather
		)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := th.db.Exec(query,
		th.executionID,
		temp.SensorName,
		temp.Timestamp.Unix(),
		temp.Celsius,
		int(temp.Band),
		temp.ReadFailed,
		false)
	if err != nil {
		return fmt.Errorf("create templog: %w", err)
	}
	return nil
}

// queryUnsentAverages averages the good readings of this execution that
// haven't gone to Brewfather yet, per sensor
func (th *TempHandler) queryUnsentAverages() ([]sensorAverage, error) {
	const query = `
		SELECT
			SensorName,
			AVG(TemperatureInC),
			MAX(Id)
		FROM
			templog
		WHERE
			HasBeenSentToBrewfather = 0
		  AND ReadFailed = 0
		  AND ExecutionIdentifier = ?
		GROUP BY SensorName
		ORDER BY SensorName`

	var avgs []sensorAverage
	err := th.db.Query(query, []any{th.executionID}, func(rows *sql.Rows) error {
		var avg sensorAverage
		if err := rows.Scan(&avg.SensorName, &avg.Celsius, &avg.MaxId); err != nil {
			return err
		}
		avgs = append(avgs, avg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query unsent averages: %w", err)
	}
	return avgs, nil
}

// markSentToBrewfather flags everything up to maxId, failed reads and rows
// left over from earlier executions included
func (th *TempHandler) markSentToBrewfather(maxId int64) (int64, error) {
	const query = `
		UPDATE templog
		SET HasBeenSentToBrewfather = 1
		WHERE HasBeenSentToBrewfather = 0
		  AND Id <= ?`
	n, err := th.db.Exec(query, maxId)
	if err != nil {
		return 0, fmt.Errorf("mark sent to brewfather: %w", err)
	}
	return n, nil
}
