// Package services maps TCP port numbers to conventional service names.
package services

// Conventional names for well-known TCP ports, following the IANA service
// name registry (the same names /etc/services carries).
var names = map[int]string{
	7:     "echo",
	9:     "discard",
	13:    "daytime",
	19:    "chargen",
	20:    "ftp-data",
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	37:    "time",
	43:    "whois",
	49:    "tacacs",
	53:    "domain",
	70:    "gopher",
	79:    "finger",
	80:    "http",
	88:    "kerberos",
	110:   "pop3",
	111:   "sunrpc",
	113:   "auth",
	119:   "nntp",
	123:   "ntp",
	135:   "epmap",
	137:   "netbios-ns",
	139:   "netbios-ssn",
	143:   "imap",
	161:   "snmp",
	179:   "bgp",
	194:   "irc",
	389:   "ldap",
	427:   "svrloc",
	443:   "https",
	445:   "microsoft-ds",
	465:   "submissions",
	500:   "isakmp",
	512:   "exec",
	513:   "login",
	514:   "shell",
	515:   "printer",
	543:   "klogin",
	544:   "kshell",
	548:   "afpovertcp",
	554:   "rtsp",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	646:   "ldp",
	873:   "rsync",
	990:   "ftps",
	993:   "imaps",
	995:   "pop3s",
	1080:  "socks",
	1433:  "ms-sql-s",
	1521:  "oracle",
	1723:  "pptp",
	2049:  "nfs",
	2181:  "zookeeper",
	3128:  "squid",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5060:  "sip",
	5222:  "xmpp-client",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	5984:  "couchdb",
	6379:  "redis",
	6667:  "ircd",
	8000:  "http-alt",
	8080:  "http-proxy",
	8443:  "pcsync-https",
	9200:  "wap-wsp",
	11211: "memcache",
	27017: "mongod",
}

// Unknown is returned for ports without a registered name.
const Unknown = "unknown"

// Name returns the conventional service name for a TCP port, or Unknown
// when the port has no registered name.
func Name(port int) string {
	if name, ok := names[port]; ok {
		return name
	}
	return Unknown
}
