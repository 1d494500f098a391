package stats

/*
All stat names used by the module. Scopes are applied by the component that
owns the receiver ("hostmanager", "cluster", "etcd", "heartbeat").
*/

const (
	/************************* Host manager: refresh *************************/
	/*
		number of refresh cycles started
	*/
	HostRefreshCounter = "refreshCounter"

	/*
		number of refresh cycles that failed and kept the previous generation
	*/
	HostRefreshFailureCounter = "refreshFailureCounter"

	/*
		number of refresh cycles abandoned because the manager was stopped
	*/
	HostRefreshAbandonedCounter = "refreshAbandonedCounter"

	/*
		number of ticks dropped because a refresh cycle was still running
	*/
	HostRefreshSkippedCounter = "refreshSkippedCounter"

	/*
		time spent computing and publishing one generation
	*/
	HostRefreshLatency_ms = "refreshLatency_ms"

	/*
		generation number of the live host weight table
	*/
	HostGenerationGauge = "generationGauge"

	/*
		number of worker groups with at least one eligible host in the live table
	*/
	HostPublishedGroupsGauge = "publishedGroupsGauge"

	/*
		number of eligible hosts across all groups in the live table
	*/
	HostPublishedHostsGauge = "publishedHostsGauge"

	/*
		nodes left out of a generation, by reason
	*/
	HostExcludedNoHeartbeatCounter = "excludedNoHeartbeatCounter"
	HostExcludedDecodeErrCounter   = "excludedDecodeErrCounter"
	HostExcludedStaleCounter       = "excludedStaleCounter"
	HostExcludedAbnormalCounter    = "excludedAbnormalCounter"
	HostExcludedBusyCounter        = "excludedBusyCounter"

	/************************* Host manager: select **************************/
	/*
		number of select calls
	*/
	HostSelectCounter = "selectCounter"

	/*
		number of select calls that found no eligible host for the worker group
	*/
	HostSelectNoHostCounter = "selectNoHostCounter"

	/*
		time spent in select
	*/
	HostSelectLatency_ms = "selectLatency_ms"

	/************************* Cluster ***************************************/
	/*
		nodes added, removed or updated as seen by the cluster view
	*/
	ClusterNodeAddedCounter   = "nodeAddedCounter"
	ClusterNodeRemovedCounter = "nodeRemovedCounter"
	ClusterNodeUpdatedCounter = "nodeUpdatedCounter"

	/*
		number of nodes in the cluster view
	*/
	ClusterNodesGauge = "nodesGauge"

	/*
		number of failed fetches; the previous view is kept
	*/
	ClusterFetchErrCounter = "fetchErrCounter"

	/************************* etcd *******************************************/
	/*
		time spent listing worker heartbeats from etcd
	*/
	EtcdFetchLatency_ms = "fetchLatency_ms"

	/*
		number of heartbeats written to etcd by an announcer
	*/
	EtcdAnnounceCounter = "announceCounter"

	/*
		number of failed heartbeat writes
	*/
	EtcdAnnounceErrCounter = "announceErrCounter"

	/************************* Heartbeat collector ****************************/
	/*
		number of failed local resource samples
	*/
	HeartbeatCollectErrCounter = "collectErrCounter"
)
